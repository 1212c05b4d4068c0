package backend

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
)

const (
	methodStartChatSession       = "StartChatSession"
	methodInquireAssistant       = "InquireAssistant"
	methodInquireAssistantStream = "InquireAssistantStream"
)

// Inquiry is a question addressed to the course assistant.
type Inquiry struct {
	ChatID      string `json:"chatId"`
	Question    string `json:"question" validate:"required"`
	CourseID    string `json:"courseId"`
	CourseTitle string `json:"courseTitle"`
}

// ChunkStream yields response fragments in order. Recv returns io.EOF after
// the final fragment.
type ChunkStream interface {
	Recv() (string, error)
}

// AssistantClient calls assistant.AssistantAgent.
type AssistantClient struct {
	registry *Registry
}

// NewAssistantClient constructs the client.
func NewAssistantClient(registry *Registry) *AssistantClient {
	return &AssistantClient{registry: registry}
}

// StartChatSession opens a new conversation.
func (c *AssistantClient) StartChatSession(ctx context.Context) (Document, error) {
	return c.registry.Call(ctx, Assistant, methodStartChatSession, struct{}{})
}

// Inquire asks a question and waits for the complete answer.
func (c *AssistantClient) Inquire(ctx context.Context, q Inquiry) (Document, error) {
	return c.registry.Call(ctx, Assistant, methodInquireAssistant, q)
}

// InquireStream asks a question and returns the incremental answer. The
// stream lives as long as ctx; cancelling ctx tears down the backend call.
func (c *AssistantClient) InquireStream(ctx context.Context, q Inquiry) (ChunkStream, error) {
	h, err := c.registry.Service(Assistant)
	if err != nil {
		return nil, err
	}
	stream, err := h.ServerStream(ctx, methodInquireAssistantStream, q)
	if err != nil {
		return nil, err
	}
	return &chunkStream{stream: stream}, nil
}

type chunkStream struct {
	stream grpc.ClientStream
}

func (s *chunkStream) Recv() (string, error) {
	var msg struct {
		Chunk string `json:"chunk"`
	}
	if err := s.stream.RecvMsg(&msg); err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", err
	}
	return msg.Chunk, nil
}
