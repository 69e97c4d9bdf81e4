//go:build !integration

package postgres

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"learnhub-billing/internal/domain/model"
	"learnhub-billing/internal/domain/ports/repository"
	red "learnhub-billing/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerCatalogRepo mocks the database repository that the catalog decorator wraps.
type mockInnerCatalogRepo struct {
	FindCourseFunc  func(ctx context.Context, tx repository.Tx, id string) (*model.Course, error)
	FindChapterFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Chapter, error)
	FindSubjectFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Subject, error)
}

func (m *mockInnerCatalogRepo) FindCourse(ctx context.Context, tx repository.Tx, id string) (*model.Course, error) {
	return m.FindCourseFunc(ctx, tx, id)
}
func (m *mockInnerCatalogRepo) FindChapter(ctx context.Context, tx repository.Tx, id string) (*model.Chapter, error) {
	return m.FindChapterFunc(ctx, tx, id)
}
func (m *mockInnerCatalogRepo) FindSubject(ctx context.Context, tx repository.Tx, id string) (*model.Subject, error) {
	return m.FindSubjectFunc(ctx, tx, id)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc func(ctx context.Context, key string) (string, error)
	SetFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc == nil {
		return "", redis.Nil
	}
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return true, nil
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error { return nil }
func (m *mockRedisClient) Ping(ctx context.Context) error                { return nil }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return 0, nil
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (m *mockRedisClient) Eval(ctx context.Context, script *redis.Script, keys []string, args ...interface{}) (interface{}, error) {
	return nil, nil
}
func (m *mockRedisClient) Close() error { return nil }
