package backend

import "context"

const methodDetectCheating = "DetectCheating"

// DetectRequest carries raw image bytes; they are base64 encoded on the wire.
type DetectRequest struct {
	Image          []byte `json:"image"`
	ReferenceImage []byte `json:"reference_image,omitempty"`
}

// ProctorClient calls proctor.ProctorService.
type ProctorClient struct {
	registry *Registry
}

// NewProctorClient constructs the client.
func NewProctorClient(registry *Registry) *ProctorClient {
	return &ProctorClient{registry: registry}
}

// DetectCheating submits a frame and an optional reference frame.
func (c *ProctorClient) DetectCheating(ctx context.Context, image, reference []byte) (Document, error) {
	return c.registry.Call(ctx, Proctor, methodDetectCheating, DetectRequest{Image: image, ReferenceImage: reference})
}
