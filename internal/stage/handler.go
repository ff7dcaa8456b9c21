// Package stage defines the contract every pipeline stage implements.
package stage

import (
	"context"

	"voiceforge/internal/queue"
)

// Handler is one unit of pipeline work. Prepare performs fast validation and
// setup before the item enters its processing status; Execute does the work;
// HealthCheck reports whether the stage's external tooling is usable.
type Handler interface {
	Prepare(ctx context.Context, item *queue.Item) error
	Execute(ctx context.Context, item *queue.Item) error
	HealthCheck(ctx context.Context) Health
}
