package driven

import (
	"context"

	"github.com/ericfisherdev/sqlgate/internal/domain/model"
)

// RateLimiter counts requests per key in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (model.RateDecision, error)
}
