package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"learnhub-billing/internal/domain"
	"learnhub-billing/internal/domain/model"
	"learnhub-billing/internal/domain/ports/repository"
)

var (
	_ repository.CatalogRepository = (*catalogRepo)(nil)
	_ repository.UserRepository    = (*userRepo)(nil)
)

type catalogRepo struct{ pool *pgxpool.Pool }

func NewCatalogRepo(pool *pgxpool.Pool) *catalogRepo {
	return &catalogRepo{pool: pool}
}

func (r *catalogRepo) FindCourse(ctx context.Context, tx repository.Tx, id string) (*model.Course, error) {
	const q = `SELECT id, COALESCE(subject_id,''), title, price::text, currency FROM courses WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var (
		c     model.Course
		price string
	)
	if err := row.Scan(&c.ID, &c.SubjectID, &c.Title, &price, &c.Currency); err != nil {
		return nil, mapScanErr("catalog.course", err)
	}
	if c.Price, err = decimal.NewFromString(price); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return &c, nil
}

func (r *catalogRepo) FindChapter(ctx context.Context, tx repository.Tx, id string) (*model.Chapter, error) {
	const q = `
SELECT ch.id, ch.course_id, COALESCE(ch.subject_id, c.subject_id, ''), ch.title, ch.summary, ch.order_index, ch.is_free, ch.price::text
FROM chapters ch JOIN courses c ON c.id = ch.course_id
WHERE ch.id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var (
		ch    model.Chapter
		price *string
	)
	if err := row.Scan(&ch.ID, &ch.CourseID, &ch.SubjectID, &ch.Title, &ch.Summary, &ch.OrderIndex, &ch.IsFree, &price); err != nil {
		return nil, mapScanErr("catalog.chapter", err)
	}
	if price != nil {
		d, err := decimal.NewFromString(*price)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		ch.Price = d
	}
	return &ch, nil
}

func (r *catalogRepo) FindSubject(ctx context.Context, tx repository.Tx, id string) (*model.Subject, error) {
	const q = `SELECT id, title, first_chapter_free FROM subjects WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var s model.Subject
	if err := row.Scan(&s.ID, &s.Title, &s.FirstChapterFree); err != nil {
		return nil, mapScanErr("catalog.subject", err)
	}
	return &s, nil
}

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

func (r *userRepo) FindProfile(ctx context.Context, tx repository.Tx, userID string) (*model.UserProfile, error) {
	const q = `SELECT id, full_name, email, phone FROM users WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	var u model.UserProfile
	if err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.Phone); err != nil {
		return nil, mapScanErr("user.profile", err)
	}
	return &u, nil
}
