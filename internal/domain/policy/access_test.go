//go:build !integration

package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"learnhub-billing/internal/domain/model"
)

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	subject := &model.Subject{ID: "physics", FirstChapterFree: true}
	ch := func(idx int, free bool) *model.Chapter {
		return &model.Chapter{ID: "ch-x", CourseID: "course-1", SubjectID: "physics", OrderIndex: idx, IsFree: free}
	}

	tests := []struct {
		name    string
		chapter *model.Chapter
		ents    model.Entitlements
		want    Decision
	}{
		{
			name:    "free flag unlocks without purchases",
			chapter: ch(5, true),
			want:    Decision{Unlocked: true, Reason: ReasonFreeFlag},
		},
		{
			name:    "first chapter unlocks without purchases",
			chapter: ch(1, false),
			want:    Decision{Unlocked: true, Reason: ReasonFirstChapter},
		},
		{
			name:    "chapter purchase unlocks that chapter",
			chapter: ch(3, false),
			ents:    model.Entitlements{Chapters: []model.ChapterEntitlement{{ChapterID: "ch-x"}}},
			want:    Decision{Unlocked: true, Reason: ReasonChapterPurchase},
		},
		{
			name:    "purchase of another chapter does not unlock",
			chapter: ch(3, false),
			ents:    model.Entitlements{Chapters: []model.ChapterEntitlement{{ChapterID: "ch-y"}}},
			want:    Decision{Reason: ReasonLocked},
		},
		{
			name:    "permanent course purchase unlocks",
			chapter: ch(3, false),
			ents:    model.Entitlements{Courses: []model.CourseEntitlement{{CourseID: "course-1"}}},
			want:    Decision{Unlocked: true, Reason: ReasonCoursePurchase},
		},
		{
			name:    "unexpired course purchase unlocks",
			chapter: ch(3, false),
			ents:    model.Entitlements{Courses: []model.CourseEntitlement{{CourseID: "course-1", ExpiresAt: &future}}},
			want:    Decision{Unlocked: true, Reason: ReasonCoursePurchase},
		},
		{
			name:    "expired course purchase does not unlock",
			chapter: ch(3, false),
			ents:    model.Entitlements{Courses: []model.CourseEntitlement{{CourseID: "course-1", ExpiresAt: &past}}},
			want:    Decision{Reason: ReasonLocked},
		},
		{
			name:    "course expiring exactly now does not unlock",
			chapter: ch(3, false),
			ents:    model.Entitlements{Courses: []model.CourseEntitlement{{CourseID: "course-1", ExpiresAt: &now}}},
			want:    Decision{Reason: ReasonLocked},
		},
		{
			name:    "purchase of another course does not unlock",
			chapter: ch(3, false),
			ents:    model.Entitlements{Courses: []model.CourseEntitlement{{CourseID: "course-2"}}},
			want:    Decision{Reason: ReasonLocked},
		},
		{
			name:    "no purchases locks a paid chapter",
			chapter: ch(2, false),
			want:    Decision{Reason: ReasonLocked},
		},
		{
			name:    "nil chapter is locked",
			chapter: nil,
			want:    Decision{Reason: ReasonLocked},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.chapter, subject, tt.ents, now)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Unlocked, IsUnlocked(tt.chapter, subject, tt.ents, now))
		})
	}
}

func TestEvaluateWithoutSubject(t *testing.T) {
	now := time.Now()
	d := Evaluate(&model.Chapter{ID: "c1", CourseID: "k", OrderIndex: 1}, nil, model.Entitlements{}, now)
	assert.True(t, d.Unlocked)
	assert.Equal(t, ReasonFirstChapter, d.Reason)
}
