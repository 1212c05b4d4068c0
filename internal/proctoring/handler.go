package proctoring

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ulms/ulms-gateway/internal/backend"
	"github.com/ulms/ulms-gateway/internal/platform/httpx"
)

// MaxUploadBytes bounds each uploaded image.
const MaxUploadBytes = 10 << 20

// VisionService runs a synchronous detection on the proctor backend.
type VisionService interface {
	DetectCheating(ctx context.Context, image, reference []byte) (backend.Document, error)
}

// Handler serves the synchronous detection endpoint.
type Handler struct {
	vision VisionService
	logger *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(vision VisionService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{vision: vision, logger: logger}
}

// MountRoutes registers /proctor routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/detect-cheating", h.handleDetect)
}

func (h *Handler) handleDetect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 2*MaxUploadBytes+1<<20)
	reader, err := r.MultipartReader()
	if err != nil {
		httpx.RespondError(w, httpx.Invalid("multipart form required"))
		return
	}
	files := map[string][]byte{}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			httpx.RespondError(w, httpx.Errorf(httpx.ErrValidation, "read upload: %v", err))
			return
		}
		name := part.FormName()
		if name != "image" && name != "reference_image" {
			_ = part.Close()
			continue
		}
		data, err := readImagePart(part)
		_ = part.Close()
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		if _, dup := files[name]; !dup {
			files[name] = data
		}
	}
	if len(files["image"]) == 0 || len(files["reference_image"]) == 0 {
		httpx.RespondError(w, httpx.Invalid("Both images are required"))
		return
	}

	result, err := h.vision.DetectCheating(r.Context(), files["image"], files["reference_image"])
	if err != nil {
		classified := backend.Classify(err)
		if httpx.StatusOf(classified) >= http.StatusInternalServerError {
			h.logger.Error("detect cheating", slog.Any("error", err))
		}
		httpx.RespondError(w, classified)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func readImagePart(part *multipart.Part) ([]byte, error) {
	if !isImageMIME(uploadMIME(part.Header.Get("Content-Type"), part.FileName())) {
		return nil, httpx.Invalid("Only image files are allowed!")
	}
	data, err := io.ReadAll(io.LimitReader(part, MaxUploadBytes+1))
	if err != nil {
		return nil, httpx.Errorf(httpx.ErrValidation, "read upload: %v", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, httpx.Invalid(fmt.Sprintf("%s exceeds %d bytes", part.FormName(), MaxUploadBytes))
	}
	return data, nil
}
