package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"learnhub-billing/internal/domain/model"
	"learnhub-billing/internal/domain/ports/repository"
	"learnhub-billing/internal/infra/metrics"
	red "learnhub-billing/internal/infra/redis"
)

var _ repository.CatalogRepository = (*catalogRepoCacheDecorator)(nil)

// catalogRepoCacheDecorator reads through Redis. Catalog rows are written by
// another service, so entries simply age out after ttl.
type catalogRepoCacheDecorator struct {
	inner repository.CatalogRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewCatalogRepoCacheDecorator(inner repository.CatalogRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.CatalogRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	l := logger.With().Str("component", "CatalogCache").Logger()
	return &catalogRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: &l}
}

func (d *catalogRepoCacheDecorator) FindCourse(ctx context.Context, tx repository.Tx, id string) (*model.Course, error) {
	var c model.Course
	if d.lookup(ctx, "course", fmt.Sprintf("course:%s", id), &c) {
		return &c, nil
	}
	out, err := d.inner.FindCourse(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	d.store(ctx, fmt.Sprintf("course:%s", id), out)
	return out, nil
}

func (d *catalogRepoCacheDecorator) FindChapter(ctx context.Context, tx repository.Tx, id string) (*model.Chapter, error) {
	var ch model.Chapter
	if d.lookup(ctx, "chapter", fmt.Sprintf("chapter:%s", id), &ch) {
		return &ch, nil
	}
	out, err := d.inner.FindChapter(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	d.store(ctx, fmt.Sprintf("chapter:%s", id), out)
	return out, nil
}

func (d *catalogRepoCacheDecorator) FindSubject(ctx context.Context, tx repository.Tx, id string) (*model.Subject, error) {
	var s model.Subject
	if d.lookup(ctx, "subject", fmt.Sprintf("subject:%s", id), &s) {
		return &s, nil
	}
	out, err := d.inner.FindSubject(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	d.store(ctx, fmt.Sprintf("subject:%s", id), out)
	return out, nil
}

func (d *catalogRepoCacheDecorator) lookup(ctx context.Context, name, key string, dst interface{}) bool {
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		if json.Unmarshal([]byte(val), dst) == nil {
			metrics.IncCacheRequest(name, "hit")
			return true
		}
	case !errors.Is(err, red.Nil):
		metrics.IncCacheRequest(name, "error")
		d.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		return false
	}
	metrics.IncCacheRequest(name, "miss")
	return false
}

func (d *catalogRepoCacheDecorator) store(ctx context.Context, key string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
