// File: internal/usecase/access_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"learnhub-billing/internal/domain"
	"learnhub-billing/internal/domain/model"
	"learnhub-billing/internal/domain/policy"
	"learnhub-billing/internal/domain/ports/repository"
	"learnhub-billing/internal/infra/logging"
	"learnhub-billing/internal/infra/metrics"
)

// Compile-time check
var _ AccessUseCase = (*accessUC)(nil)

// ChapterAccess is an access decision together with the chapter it was made for.
type ChapterAccess struct {
	Chapter  *model.Chapter
	Decision policy.Decision
}

type AccessUseCase interface {
	// Authorize returns ErrUnauthenticated, ErrNotFound or ErrLocked when the
	// user may not open the chapter. A locked result still carries the decision.
	Authorize(ctx context.Context, userID, chapterID string) (*ChapterAccess, error)
}

type accessUC struct {
	catalog repository.CatalogRepository
	ents    repository.EntitlementRepository
	now     func() time.Time
	log     *zerolog.Logger
}

func NewAccessUseCase(catalog repository.CatalogRepository, ents repository.EntitlementRepository, logger *zerolog.Logger) *accessUC {
	l := logger.With().Str("component", "AccessUC").Logger()
	return &accessUC{catalog: catalog, ents: ents, now: time.Now, log: &l}
}

func (u *accessUC) Authorize(ctx context.Context, userID, chapterID string) (*ChapterAccess, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if strings.TrimSpace(chapterID) == "" {
		return nil, fmt.Errorf("%w: chapter id required", domain.ErrInvalidArgument)
	}

	ch, err := u.catalog.FindChapter(ctx, nil, chapterID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("chapter %s: %w", chapterID, domain.ErrNotFound)
		}
		return nil, err
	}

	var subject *model.Subject
	if ch.SubjectID != "" {
		subject, err = u.catalog.FindSubject(ctx, nil, ch.SubjectID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	now := u.now()
	// Free and first chapters never need the entitlement lookup.
	d := policy.Evaluate(ch, subject, model.Entitlements{}, now)
	if !d.Unlocked {
		ents, err := u.ents.ListByUser(ctx, nil, userID)
		if err != nil {
			return nil, err
		}
		d = policy.Evaluate(ch, subject, ents, now)
	}
	metrics.IncAccessDecision(string(d.Reason))

	access := &ChapterAccess{Chapter: ch, Decision: d}
	if !d.Unlocked {
		logging.With(ctx, u.log).Debug().Str("chapter_id", chapterID).Msg("chapter locked")
		return access, domain.ErrLocked
	}
	return access, nil
}
