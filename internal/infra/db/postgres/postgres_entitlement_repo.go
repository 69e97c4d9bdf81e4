package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"learnhub-billing/internal/domain/model"
	"learnhub-billing/internal/domain/ports/repository"
)

var _ repository.EntitlementRepository = (*entitlementRepo)(nil)

type entitlementRepo struct{ pool *pgxpool.Pool }

func NewEntitlementRepo(pool *pgxpool.Pool) *entitlementRepo {
	return &entitlementRepo{pool: pool}
}

func (r *entitlementRepo) HasActiveCourseEntitlement(ctx context.Context, tx repository.Tx, userID, courseID string, now time.Time) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM course_entitlements WHERE user_id=$1 AND course_id=$2 AND (expires_at IS NULL OR expires_at > $3));`
	return r.exists(ctx, tx, "entitlement.has_course", q, userID, courseID, now)
}

func (r *entitlementRepo) HasChapterEntitlement(ctx context.Context, tx repository.Tx, userID, chapterID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM chapter_entitlements WHERE user_id=$1 AND chapter_id=$2);`
	return r.exists(ctx, tx, "entitlement.has_chapter", q, userID, chapterID)
}

func (r *entitlementRepo) HasAnyActive(ctx context.Context, tx repository.Tx, userID string, now time.Time) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM course_entitlements WHERE user_id=$1 AND (expires_at IS NULL OR expires_at > $2));`
	return r.exists(ctx, tx, "entitlement.has_any", q, userID, now)
}

func (r *entitlementRepo) exists(ctx context.Context, tx repository.Tx, op, q string, args ...interface{}) (bool, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, mapScanErr(op, err)
	}
	return ok, nil
}

// GrantCourseEntitlement upserts on (user_id, course_id); the newest purchase
// decides plan, order and expiry.
func (r *entitlementRepo) GrantCourseEntitlement(ctx context.Context, tx repository.Tx, e *model.CourseEntitlement) error {
	const q = `
INSERT INTO course_entitlements (user_id, course_id, plan_id, order_id, purchased_at, expires_at)
VALUES ($1,$2,$3,NULLIF($4,''),$5,$6)
ON CONFLICT (user_id, course_id) DO UPDATE SET
  plan_id=EXCLUDED.plan_id, order_id=EXCLUDED.order_id, purchased_at=EXCLUDED.purchased_at, expires_at=EXCLUDED.expires_at;`
	_, err := execSQL(ctx, r.pool, tx, q, e.UserID, e.CourseID, e.PlanID, e.OrderID, e.PurchasedAt, e.ExpiresAt)
	return mapErr("entitlement.grant_course", err)
}

func (r *entitlementRepo) GrantChapterEntitlement(ctx context.Context, tx repository.Tx, e *model.ChapterEntitlement) error {
	const q = `INSERT INTO chapter_entitlements (user_id, chapter_id, purchased_at) VALUES ($1,$2,$3) ON CONFLICT (user_id, chapter_id) DO NOTHING;`
	_, err := execSQL(ctx, r.pool, tx, q, e.UserID, e.ChapterID, e.PurchasedAt)
	return mapErr("entitlement.grant_chapter", err)
}

func (r *entitlementRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) (model.Entitlements, error) {
	var out model.Entitlements

	const qc = `SELECT user_id, course_id, plan_id, COALESCE(order_id,''), purchased_at, expires_at FROM course_entitlements WHERE user_id=$1 ORDER BY course_id;`
	rows, err := queryRows(ctx, r.pool, tx, qc, userID)
	if err != nil {
		return out, mapErr("entitlement.list_courses", err)
	}
	for rows.Next() {
		var e model.CourseEntitlement
		if err := rows.Scan(&e.UserID, &e.CourseID, &e.PlanID, &e.OrderID, &e.PurchasedAt, &e.ExpiresAt); err != nil {
			rows.Close()
			return out, mapScanErr("entitlement.list_courses", err)
		}
		out.Courses = append(out.Courses, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return out, mapErr("entitlement.list_courses", err)
	}

	const qch = `SELECT user_id, chapter_id, purchased_at FROM chapter_entitlements WHERE user_id=$1 ORDER BY chapter_id;`
	rows, err = queryRows(ctx, r.pool, tx, qch, userID)
	if err != nil {
		return out, mapErr("entitlement.list_chapters", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e model.ChapterEntitlement
		if err := rows.Scan(&e.UserID, &e.ChapterID, &e.PurchasedAt); err != nil {
			return out, mapScanErr("entitlement.list_chapters", err)
		}
		out.Chapters = append(out.Chapters, e)
	}
	if err := rows.Err(); err != nil {
		return out, mapErr("entitlement.list_chapters", err)
	}
	return out, nil
}
