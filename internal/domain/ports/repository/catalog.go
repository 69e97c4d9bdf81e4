package repository

import (
	"context"

	"learnhub-billing/internal/domain/model"
)

// CatalogRepository reads courses, chapters and subjects. Catalog data is
// maintained elsewhere; this service never writes it.
type CatalogRepository interface {
	FindCourse(ctx context.Context, tx Tx, id string) (*model.Course, error)
	FindChapter(ctx context.Context, tx Tx, id string) (*model.Chapter, error)
	FindSubject(ctx context.Context, tx Tx, id string) (*model.Subject, error)
}

// UserRepository reads customer profile fields.
type UserRepository interface {
	FindProfile(ctx context.Context, tx Tx, userID string) (*model.UserProfile, error)
}
