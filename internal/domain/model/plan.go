package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"learnhub-billing/internal/domain"
)

// Plan is a fixed-price purchase option; DurationDays 0 means permanent access.
type Plan struct {
	ID           string
	Price        decimal.Decimal
	Currency     string
	DurationDays int
}

// NewPlan validates and constructs a plan.
func NewPlan(id string, price decimal.Decimal, currency string, durationDays int) (*Plan, error) {
	if strings.TrimSpace(id) == "" || !price.IsPositive() || currency == "" || durationDays < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{ID: id, Price: price, Currency: strings.ToUpper(currency), DurationDays: durationDays}, nil
}

// ExpiryFrom returns when an entitlement bought at purchasedAt expires.
func (p *Plan) ExpiryFrom(purchasedAt time.Time) *time.Time {
	if p == nil || p.DurationDays <= 0 {
		return nil
	}
	t := purchasedAt.AddDate(0, 0, p.DurationDays)
	return &t
}

// PriceTable resolves plan ids to plans.
type PriceTable map[string]*Plan

func NewPriceTable(plans ...*Plan) PriceTable {
	t := make(PriceTable, len(plans))
	for _, p := range plans {
		t[p.ID] = p
	}
	return t
}

func (t PriceTable) Lookup(id string) (*Plan, bool) {
	if id == "" {
		return nil, false
	}
	p, ok := t[id]
	return p, ok
}
