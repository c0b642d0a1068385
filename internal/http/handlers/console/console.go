package console

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/princekumarofficial/plate-console/internal/console"
	"github.com/princekumarofficial/plate-console/internal/http/middleware"
	"github.com/princekumarofficial/plate-console/internal/services/detect"
	"github.com/princekumarofficial/plate-console/internal/storage"
	"github.com/princekumarofficial/plate-console/internal/types/media"
	"github.com/princekumarofficial/plate-console/internal/upload"
	"github.com/princekumarofficial/plate-console/internal/utils/response"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type ConsoleHandlers struct {
	sessions     *console.Sessions
	history      storage.Storage
	maxUploadMB  int64
	historyLimit int
}

// NewConsoleHandlers creates the console page handlers. history may be nil.
func NewConsoleHandlers(sessions *console.Sessions, history storage.Storage, maxUploadMB int64) *ConsoleHandlers {
	return &ConsoleHandlers{
		sessions:     sessions,
		history:      history,
		maxUploadMB:  maxUploadMB,
		historyLimit: 50,
	}
}

// Index renders the console page for the caller's session
func (h *ConsoleHandlers) Index() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := middleware.GetSessionIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("session required")))
			return
		}

		view := h.sessions.Get(sessionID).Page.Render()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err := indexTmpl.Execute(w, view); err != nil {
			slog.Error("Failed to render console", slog.String("error", err.Error()))
		}
	}
}

// Submit handles the upload form. Every outcome, including rejected
// uploads, is shown as page state after a redirect back to the console.
// @Summary Submit a file for plate detection
// @Description Sends the file to the detection endpoint for its media kind and redirects back to the console. Oversized, concurrent and rate-limited submissions are reported as page alerts.
// @Tags console
// @Accept multipart/form-data
// @Param file formData file false "Image or video"
// @Success 303 "Redirect to the console"
// @Failure 400 {object} response.Response "Session required"
// @Router /submit [post]
func (h *ConsoleHandlers) Submit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := middleware.GetSessionIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("session required")))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadMB<<20)
		if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				h.alertAndReturn(w, r, sessionID, "file exceeds "+strconv.FormatInt(h.maxUploadMB, 10)+" MB")
				return
			}
			h.alertAndReturn(w, r, sessionID, err.Error())
			return
		}

		var file *media.Upload
		f, header, err := r.FormFile(detect.FieldName)
		switch {
		case err == nil:
			defer f.Close()
			file = uploadFrom(f, header)
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			// The handler alerts on an empty selection
		default:
			h.alertAndReturn(w, r, sessionID, err.Error())
			return
		}

		err = h.sessions.Submit(r.Context(), sessionID, file)
		if errors.Is(err, upload.ErrInFlight) {
			h.alertAndReturn(w, r, sessionID, err.Error())
			return
		}
		if err != nil {
			slog.Warn("Submission did not complete",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()))
		}

		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// Limited reports a rate-limited submission on the session's page
func (h *ConsoleHandlers) Limited() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := middleware.GetSessionIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusTooManyRequests, response.GeneralError(errors.New("rate limit exceeded")))
			return
		}
		h.alertAndReturn(w, r, sessionID, "rate limit exceeded")
	}
}

func (h *ConsoleHandlers) alertAndReturn(w http.ResponseWriter, r *http.Request, sessionID, message string) {
	h.sessions.Get(sessionID).Page.Alert("Error: " + message)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// History lists recent submissions
// @Summary Recent submissions
// @Tags console
// @Produce json
// @Param limit query int false "Maximum entries (default: 50)"
// @Success 200 {object} response.Response "Submissions retrieved successfully"
// @Failure 500 {object} response.Response "Internal server error"
// @Router /history [get]
func (h *ConsoleHandlers) History() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.history == nil {
			response.WriteJSON(w, http.StatusNotFound, response.GeneralError(errors.New("history is disabled")))
			return
		}

		limit := h.historyLimit
		if l := r.URL.Query().Get("limit"); l != "" {
			if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
				limit = parsed
			}
		}

		submissions, err := h.history.ListSubmissions(r.Context(), limit)
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Submissions retrieved successfully", submissions))
	}
}

func uploadFrom(f multipart.File, header *multipart.FileHeader) *media.Upload {
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = detect.DeclaredType(header.Filename, nil)
	}
	return &media.Upload{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        f,
	}
}
