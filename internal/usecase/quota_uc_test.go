//go:build !integration

package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"learnhub-billing/internal/domain"
	"learnhub-billing/internal/domain/model"
)

func dhaka(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Dhaka")
	if err != nil {
		t.Fatalf("load Asia/Dhaka: %v", err)
	}
	return loc
}

func newQuotaFixture(t *testing.T) (*quotaUC, *memUsageCounter, *memEntitlementRepo, *fixedClock) {
	t.Helper()
	counter := newMemUsageCounter()
	ents := newMemEntitlementRepo()
	clock := &fixedClock{t: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	uc := NewQuotaUseCase(counter, ents, 3, dhaka(t), newTestLogger())
	uc.now = clock.Now
	return uc, counter, ents, clock
}

func TestQuotaUseCase_CheckAndIncrement(t *testing.T) {
	ctx := context.Background()

	t.Run("should allow three calls and deny the fourth", func(t *testing.T) {
		uc, counter, _, clock := newQuotaFixture(t)
		for i := 1; i <= 3; i++ {
			res, err := uc.CheckAndIncrement(ctx, "user-1", model.UsageAIQA)
			if err != nil {
				t.Fatalf("call %d: unexpected error %v", i, err)
			}
			if !res.Allowed || res.Count != i {
				t.Fatalf("call %d: expected allowed with count %d, got %+v", i, i, res)
			}
		}
		res, err := uc.CheckAndIncrement(ctx, "user-1", model.UsageAIQA)
		if !errors.Is(err, domain.ErrQuotaExceeded) {
			t.Fatalf("expected ErrQuotaExceeded, got %v", err)
		}
		if res.Allowed || res.Remaining() != 0 {
			t.Fatalf("expected denied with nothing remaining, got %+v", res)
		}
		got, _ := counter.Get(ctx, "user-1", model.DateKey(clock.Now(), dhaka(t)), model.UsageAIQA)
		if got != 3 {
			t.Fatalf("denied call must not increment, counter=%d", got)
		}
	})

	t.Run("should count each usage type separately", func(t *testing.T) {
		uc, _, _, _ := newQuotaFixture(t)
		for i := 0; i < 3; i++ {
			if _, err := uc.CheckAndIncrement(ctx, "user-1", model.UsageAIQA); err != nil {
				t.Fatalf("qa call: %v", err)
			}
		}
		if _, err := uc.CheckAndIncrement(ctx, "user-1", model.UsageQuizGenerator); err != nil {
			t.Fatalf("quiz quota should be untouched: %v", err)
		}
	})

	t.Run("should reset at Dhaka midnight", func(t *testing.T) {
		uc, _, _, clock := newQuotaFixture(t)
		// 17:30 UTC is 23:30 in Dhaka.
		clock.Set(time.Date(2025, 3, 10, 17, 30, 0, 0, time.UTC))
		for i := 0; i < 3; i++ {
			_, _ = uc.CheckAndIncrement(ctx, "user-1", model.UsageAIQA)
		}
		if _, err := uc.CheckAndIncrement(ctx, "user-1", model.UsageAIQA); !errors.Is(err, domain.ErrQuotaExceeded) {
			t.Fatalf("expected exhausted quota before midnight, got %v", err)
		}
		clock.Set(time.Date(2025, 3, 10, 18, 0, 1, 0, time.UTC))
		res, err := uc.CheckAndIncrement(ctx, "user-1", model.UsageAIQA)
		if err != nil || res.Count != 1 {
			t.Fatalf("expected fresh counter after midnight, got %+v err=%v", res, err)
		}
	})

	t.Run("should never allow more than the limit under concurrency", func(t *testing.T) {
		uc, _, _, _ := newQuotaFixture(t)
		var allowed int32
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if res, err := uc.CheckAndIncrement(ctx, "user-1", model.UsageAIChat); err == nil && res.Allowed {
					atomic.AddInt32(&allowed, 1)
				}
			}()
		}
		wg.Wait()
		if allowed != 3 {
			t.Fatalf("expected exactly 3 allowed calls, got %d", allowed)
		}
	})

	t.Run("should bypass the counter for premium users", func(t *testing.T) {
		uc, counter, ents, clock := newQuotaFixture(t)
		_ = ents.GrantCourseEntitlement(ctx, nil, &model.CourseEntitlement{UserID: "user-1", CourseID: "course-1", PurchasedAt: clock.Now()})
		for i := 0; i < 10; i++ {
			res, err := uc.CheckAndIncrement(ctx, "user-1", model.UsageAIQA)
			if err != nil || !res.Allowed || !res.Premium {
				t.Fatalf("premium call %d denied: %+v err=%v", i, res, err)
			}
		}
		got, _ := counter.Get(ctx, "user-1", model.DateKey(clock.Now(), dhaka(t)), model.UsageAIQA)
		if got != 0 {
			t.Fatalf("premium calls must not touch the counter, got %d", got)
		}
	})

	t.Run("should treat an expired entitlement as free tier", func(t *testing.T) {
		uc, _, ents, clock := newQuotaFixture(t)
		expired := clock.Now().Add(-time.Hour)
		_ = ents.GrantCourseEntitlement(ctx, nil, &model.CourseEntitlement{UserID: "user-1", CourseID: "course-1", ExpiresAt: &expired})
		res, err := uc.CheckAndIncrement(ctx, "user-1", model.UsageAIQA)
		if err != nil || res.Premium || res.Count != 1 {
			t.Fatalf("expected metered call, got %+v err=%v", res, err)
		}
	})

	t.Run("should deny when the counter store fails", func(t *testing.T) {
		uc, counter, _, _ := newQuotaFixture(t)
		counter.err = errors.New("connection refused")
		res, err := uc.CheckAndIncrement(ctx, "user-1", model.UsageAIQA)
		if err == nil || res.Allowed {
			t.Fatalf("expected a denied call with error, got %+v err=%v", res, err)
		}
		if errors.Is(err, domain.ErrQuotaExceeded) {
			t.Fatal("storage failure should not be reported as quota exceeded")
		}
	})

	t.Run("should deny when the premium lookup fails", func(t *testing.T) {
		uc, _, ents, _ := newQuotaFixture(t)
		ents.readErr = errors.New("timeout")
		if res, err := uc.CheckAndIncrement(ctx, "user-1", model.UsageAIQA); err == nil || res.Allowed {
			t.Fatalf("expected denial, got %+v err=%v", res, err)
		}
	})

	t.Run("should reject anonymous callers and unknown types", func(t *testing.T) {
		uc, _, _, _ := newQuotaFixture(t)
		if _, err := uc.CheckAndIncrement(ctx, "", model.UsageAIQA); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("expected ErrUnauthenticated, got %v", err)
		}
		if _, err := uc.CheckAndIncrement(ctx, "user-1", model.UsageType("essay")); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestQuotaUseCase_Status(t *testing.T) {
	ctx := context.Background()
	uc, _, _, _ := newQuotaFixture(t)

	res, err := uc.Status(ctx, "user-1", model.UsageAIQA)
	if err != nil || res.Count != 0 || !res.Allowed || res.Remaining() != 3 {
		t.Fatalf("unexpected fresh status %+v err=%v", res, err)
	}
	for i := 0; i < 3; i++ {
		_, _ = uc.CheckAndIncrement(ctx, "user-1", model.UsageAIQA)
	}
	res, err = uc.Status(ctx, "user-1", model.UsageAIQA)
	if err != nil || res.Count != 3 || res.Allowed {
		t.Fatalf("unexpected exhausted status %+v err=%v", res, err)
	}
	// Status is read-only.
	res, _ = uc.Status(ctx, "user-1", model.UsageAIQA)
	if res.Count != 3 {
		t.Fatalf("status must not consume quota, count=%d", res.Count)
	}
}
