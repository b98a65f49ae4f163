package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/alfredjeanlab/medbuddy/internal/model"
)

// Limited bounds the call rate of an inner generator. A call that cannot get
// a token before its context ends fails as UNAVAILABLE.
type Limited struct {
	inner   Generator
	limiter *rate.Limiter
}

// NewLimited allows perMinute calls per minute with a burst of one. A
// non-positive perMinute disables limiting.
func NewLimited(inner Generator, perMinute int) *Limited {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &Limited{inner: inner, limiter: rate.NewLimiter(limit, 1)}
}

// Name implements Generator.
func (l *Limited) Name() string { return l.inner.Name() }

// Generate implements Generator.
func (l *Limited) Generate(ctx context.Context, prompt string, contextEvents []*model.Event, opts Options) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", &Error{Kind: KindUnavailable, Provider: l.inner.Name(), Msg: "rate limit wait", Err: err}
	}
	return l.inner.Generate(ctx, prompt, contextEvents, opts)
}
