package media

import (
	"io"
	"strings"
)

// Kind is the binary classification of an uploaded file
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

const (
	EndpointImage = "/detect-image/"
	EndpointVideo = "/detect-video/"
)

// KindOf classifies a declared content type. Only the "image" prefix is
// checked; every other value, including an empty one, is a video.
func KindOf(contentType string) Kind {
	if strings.HasPrefix(contentType, "image") {
		return KindImage
	}
	return KindVideo
}

// Endpoint returns the detection service path for the kind
func Endpoint(kind Kind) string {
	if kind == KindImage {
		return EndpointImage
	}
	return EndpointVideo
}

// Upload is the single file carried by one submission
type Upload struct {
	Filename    string    `json:"filename" validate:"required"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size" validate:"min=0"`
	Body        io.Reader `json:"-" validate:"required"`
}

// Kind returns the media kind derived from the declared content type
func (u *Upload) Kind() Kind {
	return KindOf(u.ContentType)
}

// Result is the outcome of one detection call: either *Success or *Failure.
type Result interface {
	result()
}

// Success carries the processed media returned by the detection service
type Success struct {
	Body        []byte
	ContentType string
	Kind        Kind
}

// Failure carries the error message reported by the detection service
type Failure struct {
	Status  int
	Message string
}

func (*Success) result() {}
func (*Failure) result() {}

// ErrorBody is the JSON payload of a failed detection response
type ErrorBody struct {
	Error string `json:"error"`
}
