package media

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
)

const maxUploadSizeBytes = 10 << 20

// Uploader pushes a document to the hosting provider and returns its URL.
type Uploader interface {
	Upload(ctx context.Context, source, resourceType string) (string, error)
}

// UploadHandler accepts loan documents (GST certificates, bank statements,
// photos) as multipart uploads and stores them with the configured provider.
type UploadHandler struct {
	uploader Uploader
}

func NewUploadHandler(uploader Uploader) *UploadHandler {
	return &UploadHandler{uploader: uploader}
}

func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		writeError(w, http.StatusInternalServerError, "document uploader is not configured")
		return
	}

	if err := r.ParseMultipartForm(maxUploadSizeBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSizeBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "file is empty")
		return
	}
	if len(data) > maxUploadSizeBytes {
		writeError(w, http.StatusBadRequest, "file is too large")
		return
	}

	contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	contentType = strings.ToLower(contentType)

	resourceType, ok := resourceTypeFor(contentType)
	if !ok {
		writeError(w, http.StatusBadRequest, "file must be a PDF or an image")
		return
	}

	source := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))
	secureURL, err := h.uploader.Upload(r.Context(), source, resourceType)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusBadGateway, "failed to upload document")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"secure_url": secureURL})
}

func resourceTypeFor(contentType string) (string, bool) {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return ResourceImage, true
	case contentType == "application/pdf":
		return ResourceRaw, true
	}
	return "", false
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
