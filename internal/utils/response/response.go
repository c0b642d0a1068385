package response

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Response is the JSON envelope returned by the console's API routes
type Response struct {
	Status  string      `json:"status"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(data)
}

func GeneralError(err error) Response {
	return Response{
		Status: StatusError,
		Error:  err.Error(),
	}
}

// ValidationError joins field errors as "Field: tag" pairs
func ValidationError(errs validator.ValidationErrors) Response {
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		messages = append(messages, err.Field()+": "+err.Tag())
	}

	return Response{
		Status: StatusError,
		Error:  strings.Join(messages, "; "),
	}
}

func RequestOK(message string, data interface{}) Response {
	return Response{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	}
}
