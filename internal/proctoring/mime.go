package proctoring

import (
	"log/slog"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
)

func init() {
	ensureMimeType(".webp", "image/webp")
	ensureMimeType(".jpg", "image/jpeg")
}

func ensureMimeType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		slog.Warn("register MIME type", slog.String("ext", ext), slog.Any("error", err))
	}
}

var imageMIME = regexp.MustCompile(`/(jpg|jpeg|png|gif|webp)$`)

// uploadMIME returns the media type of an uploaded part, falling back to the
// filename extension when the client sent none.
func uploadMIME(contentType, filename string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt != "application/octet-stream" {
		return mt
	}
	mt, _, _ := mime.ParseMediaType(mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))))
	return mt
}

func isImageMIME(mt string) bool {
	return imageMIME.MatchString(mt)
}
