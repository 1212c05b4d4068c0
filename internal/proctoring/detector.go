package proctoring

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/ulms/ulms-gateway/internal/observability"
)

// DetectTimeout bounds one call to the detection API.
const DetectTimeout = 60 * time.Second

// HeaderAuthToken carries the shared secret expected by the detection API.
const HeaderAuthToken = "x-auth-token"

// HTTPDetector posts frames to the external cheating-detection API.
type HTTPDetector struct {
	url        string
	token      string
	httpClient *http.Client
}

// NewHTTPDetector constructs a detector for the given endpoint.
func NewHTTPDetector(url, token string) *HTTPDetector {
	return &HTTPDetector{
		url:   url,
		token: token,
		httpClient: observability.InstrumentClient(&http.Client{
			Timeout: DetectTimeout,
		}),
	}
}

// Detect sends image and, when present, reference as multipart parts and
// returns the status and body of the response. Error statuses are not
// converted to errors here.
func (d *HTTPDetector) Detect(ctx context.Context, image, reference []byte) (int, []byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writeJPEG(writer, "image", "image.jpg", image); err != nil {
		return 0, nil, err
	}
	if len(reference) > 0 {
		if err := writeJPEG(writer, "reference_image", "reference.jpg", reference); err != nil {
			return 0, nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(HeaderAuthToken, d.token)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("detection api: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("detection api: read body: %w", err)
	}
	return resp.StatusCode, data, nil
}

func writeJPEG(w *multipart.Writer, field, filename string, data []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}
