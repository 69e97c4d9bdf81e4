package model

import "github.com/shopspring/decimal"

// Subject groups courses; catalog data is read-only here.
type Subject struct {
	ID               string
	Title            string
	FirstChapterFree bool
}

type Course struct {
	ID        string
	SubjectID string
	Title     string
	Price     decimal.Decimal
	Currency  string
}

type Chapter struct {
	ID         string
	CourseID   string
	SubjectID  string
	Title      string
	Summary    string
	OrderIndex int // 1-based position within the course
	IsFree     bool
	Price      decimal.Decimal
}
