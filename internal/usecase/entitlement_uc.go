// File: internal/usecase/entitlement_uc.go
package usecase

import (
	"context"
	"time"

	"learnhub-billing/internal/domain"
	"learnhub-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ EntitlementUseCase = (*entitlementUC)(nil)

// EntitlementSummary is the read-only view a client re-fetches after payment.
type EntitlementSummary struct {
	UserID   string         `json:"user_id"`
	Premium  bool           `json:"premium"`
	Courses  []CourseAccess `json:"courses"`
	Chapters []string       `json:"chapters"`
}

type CourseAccess struct {
	CourseID    string     `json:"course_id"`
	PlanID      string     `json:"plan_id,omitempty"`
	PurchasedAt time.Time  `json:"purchased_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Active      bool       `json:"active"`
}

type EntitlementUseCase interface {
	IsPremium(ctx context.Context, userID string) (bool, error)
	Summary(ctx context.Context, userID string) (*EntitlementSummary, error)
}

type entitlementUC struct {
	ents repository.EntitlementRepository
	now  func() time.Time
}

func NewEntitlementUseCase(ents repository.EntitlementRepository) *entitlementUC {
	return &entitlementUC{ents: ents, now: time.Now}
}

func (u *entitlementUC) IsPremium(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, domain.ErrUnauthenticated
	}
	return u.ents.HasAnyActive(ctx, nil, userID, u.now())
}

func (u *entitlementUC) Summary(ctx context.Context, userID string) (*EntitlementSummary, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	ents, err := u.ents.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	now := u.now()
	out := &EntitlementSummary{
		UserID:   userID,
		Premium:  ents.AnyActive(now),
		Courses:  make([]CourseAccess, 0, len(ents.Courses)),
		Chapters: make([]string, 0, len(ents.Chapters)),
	}
	for _, c := range ents.Courses {
		out.Courses = append(out.Courses, CourseAccess{
			CourseID:    c.CourseID,
			PlanID:      c.PlanID,
			PurchasedAt: c.PurchasedAt,
			ExpiresAt:   c.ExpiresAt,
			Active:      c.IsActive(now),
		})
	}
	for _, c := range ents.Chapters {
		out.Chapters = append(out.Chapters, c.ChapterID)
	}
	return out, nil
}
