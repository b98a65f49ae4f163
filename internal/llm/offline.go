package llm

import (
	"context"

	"github.com/alfredjeanlab/medbuddy/internal/model"
)

// Offline is the generator used when no provider is configured. Every call
// fails as UNAVAILABLE, so callers take their degraded path.
type Offline struct{}

// Name implements Generator.
func (Offline) Name() string { return "offline" }

// Generate implements Generator.
func (Offline) Generate(ctx context.Context, _ string, _ []*model.Event, _ Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &Error{Kind: KindUnavailable, Provider: "offline", Err: err}
	}
	return "", &Error{Kind: KindUnavailable, Provider: "offline", Msg: "no language model configured"}
}
