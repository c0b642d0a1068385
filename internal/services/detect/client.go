package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/princekumarofficial/plate-console/internal/config"
	"github.com/princekumarofficial/plate-console/internal/types/media"
)

// FieldName is the multipart form field carrying the uploaded file
const FieldName = "file"

const maxErrorBody = 1 << 20

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a detection service client from config
func NewClient(cfg *config.Detector) *Client {
	return New(cfg.BaseURL, &http.Client{Timeout: cfg.Timeout})
}

// New creates a client for the detection service at baseURL
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// URL returns the full endpoint URL for a media kind
func (c *Client) URL(kind media.Kind) string {
	return c.baseURL + media.Endpoint(kind)
}

// Detect posts the upload to the endpoint for its media kind. A response from
// the service is always returned as a media.Result; the error is reserved for
// failures to reach the service or read its response.
func (c *Client) Detect(ctx context.Context, upload *media.Upload) (media.Result, error) {
	kind := upload.Kind()

	body, contentType, err := encode(upload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(kind), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build detection request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detection request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read detection result: %w", err)
		}

		ct := resp.Header.Get("Content-Type")
		if ct == "" {
			ct = mimetype.Detect(data).String()
		}

		return &media.Success{Body: data, ContentType: ct, Kind: kind}, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read detection error: %w", err)
	}

	return &media.Failure{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}, nil
}

// errorMessage extracts the "error" field of a failure payload. FastAPI
// validation errors carry a "detail" string instead; anything else falls
// back to the status text.
func errorMessage(status int, data []byte) string {
	var payload struct {
		Error  string      `json:"error"`
		Detail interface{} `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if detail, ok := payload.Detail.(string); ok && detail != "" {
			return detail
		}
	}

	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", status)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encode(upload *media.Upload) (io.Reader, string, error) {
	if upload.Body == nil {
		return nil, "", fmt.Errorf("upload %q has no body", upload.Filename)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	partType := upload.ContentType
	if partType == "" {
		partType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		FieldName, quoteEscaper.Replace(upload.Filename)))
	h.Set("Content-Type", partType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := io.Copy(part, upload.Body); err != nil {
		return nil, "", fmt.Errorf("failed to read upload %q: %w", upload.Filename, err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

// DeclaredType returns the content type a browser would declare for a file:
// the extension's registered type, or a sniffed type when the extension is
// unknown.
func DeclaredType(filename string, head []byte) string {
	if byExt := mime.TypeByExtension(filepath.Ext(filename)); byExt != "" {
		return stripParams(byExt)
	}
	if len(head) == 0 {
		return ""
	}
	return stripParams(mimetype.Detect(head).String())
}

func stripParams(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	return mediaType
}
