// Package policy holds the chapter access rule shared by every entry point
// that unlocks content or AI features.
package policy

import (
	"time"

	"learnhub-billing/internal/domain/model"
)

// Reason explains why a chapter is unlocked, or that it is not.
type Reason string

const (
	ReasonFreeFlag         Reason = "free_flag"
	ReasonFirstChapter     Reason = "first_chapter"
	ReasonSubjectFirstFree Reason = "subject_first_free"
	ReasonChapterPurchase  Reason = "chapter_purchase"
	ReasonCoursePurchase   Reason = "course_purchase"
	ReasonLocked           Reason = "locked"
)

type Decision struct {
	Unlocked bool
	Reason   Reason
}

// Evaluate applies the access rules in order; the first match wins.
// subject may be nil when the catalog has none for the chapter.
func Evaluate(ch *model.Chapter, subject *model.Subject, ents model.Entitlements, now time.Time) Decision {
	if ch == nil {
		return Decision{Reason: ReasonLocked}
	}
	switch {
	case ch.IsFree:
		return Decision{Unlocked: true, Reason: ReasonFreeFlag}
	case ch.OrderIndex == 1:
		return Decision{Unlocked: true, Reason: ReasonFirstChapter}
	// Shadowed by the first-chapter rule above.
	case subject != nil && subject.FirstChapterFree && ch.OrderIndex == 1:
		return Decision{Unlocked: true, Reason: ReasonSubjectFirstFree}
	case ents.HasChapter(ch.ID):
		return Decision{Unlocked: true, Reason: ReasonChapterPurchase}
	case ents.HasActiveCourse(ch.CourseID, now):
		return Decision{Unlocked: true, Reason: ReasonCoursePurchase}
	}
	return Decision{Reason: ReasonLocked}
}

// IsUnlocked is Evaluate reduced to its boolean.
func IsUnlocked(ch *model.Chapter, subject *model.Subject, ents model.Entitlements, now time.Time) bool {
	return Evaluate(ch, subject, ents, now).Unlocked
}
