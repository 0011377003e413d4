package stage

import (
	"context"

	"abstractor/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
// Prepare validates inputs and seeds progress before execution; Execute runs
// the stage body and mutates the search with its results.
type Handler interface {
	Prepare(context.Context, *queue.Search) error
	Execute(context.Context, *queue.Search) error
	HealthCheck(context.Context) Health
}
