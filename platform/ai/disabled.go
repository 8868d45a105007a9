package ai

import (
	"context"

	"advocate_backend/platform/apperr"
)

// Disabled is a Client for deployments without a model configured. Every
// call fails with an unavailable error so callers use their fallbacks.
type Disabled struct{}

func (Disabled) Complete(context.Context, Request) (string, error) {
	return "", apperr.Unavailable("ai model not configured")
}

var _ Client = (*Disabled)(nil)
