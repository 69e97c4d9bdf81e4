package repository

import (
	"context"
	"time"

	"learnhub-billing/internal/domain/model"
)

// UsageCounter stores per-day AI usage counts.
type UsageCounter interface {
	// IncrementIfBelow atomically increments the (user, date, type) counter
	// when it is below limit. It returns the count after the call and whether
	// the increment happened. Concurrent callers never push count past limit.
	IncrementIfBelow(ctx context.Context, userID, dateKey string, usageType model.UsageType, limit int, resetAt time.Time) (int, bool, error)
	Get(ctx context.Context, userID, dateKey string, usageType model.UsageType) (int, error)
}
