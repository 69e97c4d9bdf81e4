package repository

import (
	"context"
	"time"

	"learnhub-billing/internal/domain/model"
)

// EntitlementRepository is the authoritative store of what a user owns.
type EntitlementRepository interface {
	HasActiveCourseEntitlement(ctx context.Context, tx Tx, userID, courseID string, now time.Time) (bool, error)
	HasChapterEntitlement(ctx context.Context, tx Tx, userID, chapterID string) (bool, error)
	// HasAnyActive reports premium status: any course entitlement still active at now.
	HasAnyActive(ctx context.Context, tx Tx, userID string, now time.Time) (bool, error)
	// GrantCourseEntitlement upserts on (user, course); a second grant supersedes plan and expiry.
	GrantCourseEntitlement(ctx context.Context, tx Tx, e *model.CourseEntitlement) error
	// GrantChapterEntitlement is a no-op when (user, chapter) already exists.
	GrantChapterEntitlement(ctx context.Context, tx Tx, e *model.ChapterEntitlement) error
	ListByUser(ctx context.Context, tx Tx, userID string) (model.Entitlements, error)
}
