package stage

import (
	"context"

	"reelqueue/internal/queue"
)

// Handler describes the contract the stage runner needs from each stage.
//
// Execute does the stage's work for one claimed item. It may set item.Title
// and item.Description; the runner persists both with the transition. An
// error spends one retry. Handlers must be idempotent because delivery is
// at-least-once.
type Handler interface {
	Execute(context.Context, *queue.Item) error
	HealthCheck(context.Context) Health
}
