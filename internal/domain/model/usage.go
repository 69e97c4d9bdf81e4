package model

import (
	"time"

	"learnhub-billing/internal/domain"
)

type UsageType string

const (
	UsageAIQA          UsageType = "ai_qa"
	UsageQuizGenerator UsageType = "quiz_generator"
	UsageAIChat        UsageType = "ai_chat"
)

func (t UsageType) Valid() bool {
	switch t {
	case UsageAIQA, UsageQuizGenerator, UsageAIChat:
		return true
	}
	return false
}

// ParseUsageType validates a caller-supplied usage type.
func ParseUsageType(s string) (UsageType, error) {
	t := UsageType(s)
	if !t.Valid() {
		return "", domain.ErrInvalidArgument
	}
	return t, nil
}

// DateKeyLayout formats the civil date a usage counter is bucketed by.
const DateKeyLayout = "2006-01-02"

// DateKey returns the civil date of now in loc.
func DateKey(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(DateKeyLayout)
}

// EndOfDay returns the first instant of the civil day after now in loc.
func EndOfDay(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := now.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
}

// UsageCounter is the number of AI calls a user made on one civil day.
type UsageCounter struct {
	UserID  string
	DateKey string
	Type    UsageType
	Count   int
}

// QuotaResult is the outcome of a quota check.
type QuotaResult struct {
	Allowed bool
	Premium bool
	Count   int
	Limit   int
}

func (r QuotaResult) Remaining() int {
	if r.Premium {
		return -1
	}
	if n := r.Limit - r.Count; n > 0 {
		return n
	}
	return 0
}
