package model

import "time"

// CourseEntitlement grants every chapter of a course. Unique per (user, course).
type CourseEntitlement struct {
	UserID      string
	CourseID    string
	PlanID      string
	OrderID     string
	PurchasedAt time.Time
	ExpiresAt   *time.Time // nil = permanent
}

// IsActive is true while the entitlement has no expiry or expires strictly after now.
func (e CourseEntitlement) IsActive(now time.Time) bool {
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}

// ChapterEntitlement grants a single chapter. Unique per (user, chapter).
type ChapterEntitlement struct {
	UserID      string
	ChapterID   string
	PurchasedAt time.Time
}

// Entitlements is the set of facts the access policy evaluates.
type Entitlements struct {
	Courses  []CourseEntitlement
	Chapters []ChapterEntitlement
}

func (e Entitlements) HasChapter(chapterID string) bool {
	for _, c := range e.Chapters {
		if c.ChapterID == chapterID {
			return true
		}
	}
	return false
}

func (e Entitlements) HasActiveCourse(courseID string, now time.Time) bool {
	for _, c := range e.Courses {
		if c.CourseID == courseID && c.IsActive(now) {
			return true
		}
	}
	return false
}

// AnyActive reports whether the user holds at least one active course entitlement.
func (e Entitlements) AnyActive(now time.Time) bool {
	for _, c := range e.Courses {
		if c.IsActive(now) {
			return true
		}
	}
	return false
}
