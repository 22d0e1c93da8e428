package application

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ericfisherdev/sqlgate/internal/domain/model"
	"github.com/ericfisherdev/sqlgate/internal/domain/port/driven"
)

// Admission applies the two independent rate-limit classes: one keyed by
// client IP before authentication and one keyed by credential after it.
type Admission struct {
	ip    driven.RateLimiter
	token driven.RateLimiter
}

// NewAdmission creates an Admission. A nil limiter disables that class.
func NewAdmission(ip, token driven.RateLimiter) *Admission {
	return &Admission{ip: ip, token: token}
}

// AdmitIP counts one request from addr.
func (a *Admission) AdmitIP(ctx context.Context, addr string) (model.RateDecision, error) {
	return admit(ctx, a.ip, "ip:"+addr)
}

// AdmitToken counts one request made with credential id.
func (a *Admission) AdmitToken(ctx context.Context, p model.Principal) (model.RateDecision, error) {
	return admit(ctx, a.token, "token:"+strconv.FormatInt(p.CredentialID, 10))
}

func admit(ctx context.Context, limiter driven.RateLimiter, key string) (model.RateDecision, error) {
	if limiter == nil {
		return model.RateDecision{Allowed: true}, nil
	}

	d, err := limiter.Allow(ctx, key)
	if err != nil {
		return model.RateDecision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return d, nil
}
