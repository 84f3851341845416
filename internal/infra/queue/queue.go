package queue

import (
	"context"

	"github.com/yanqian/callnotes/internal/domain/callnotes"
)

// Handler executes one job.
type Handler func(ctx context.Context, name string, payload map[string]any)

// HandlerQueue is a JobQueue that delivers jobs to a handler set after construction.
type HandlerQueue interface {
	callnotes.JobQueue
	SetHandler(handler Handler)
	Close() error
}

func asPayload(payload any) map[string]any {
	if typed, ok := payload.(map[string]any); ok {
		return typed
	}
	return map[string]any{}
}
