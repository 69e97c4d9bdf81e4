package apiv1

import (
	"time"

	"github.com/shopspring/decimal"
)

type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CheckoutRequest struct {
	CourseID string           `json:"course_id" validate:"required,max=64"`
	PlanID   string           `json:"plan_id" validate:"max=64"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
}

type CheckoutResponse struct {
	OrderID     string `json:"order_id"`
	RedirectURL string `json:"redirect_url"`
}

type Order struct {
	ID        string          `json:"id"`
	CourseID  string          `json:"course_id"`
	PlanID    string          `json:"plan_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
}

type AccessCheckRequest struct {
	ChapterID string `json:"chapter_id" validate:"required,max=64"`
}

type AccessCheckResponse struct {
	ChapterID string `json:"chapter_id"`
	Unlocked  bool   `json:"unlocked"`
	Reason    string `json:"reason"`
}

type QuotaConsumeRequest struct {
	UsageType string `json:"usage_type" validate:"required,oneof=ai_qa quiz_generator ai_chat"`
}

type QuotaResponse struct {
	UsageType string `json:"usage_type"`
	Allowed   bool   `json:"allowed"`
	Premium   bool   `json:"premium"`
	Count     int    `json:"count"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}

type AskRequest struct {
	ChapterID string `json:"chapter_id" validate:"required,max=64"`
	Mode      string `json:"mode" validate:"omitempty,oneof=qa quiz chat"`
	Question  string `json:"question" validate:"required,max=4000"`
}

type AskResponse struct {
	Answer string        `json:"answer"`
	Model  string        `json:"model"`
	Quota  QuotaResponse `json:"quota"`
}

type IPNAck struct {
	Status string `json:"status"` // ok | invalid
}

// callbackForm holds the gateway callback fields this service reads.
type callbackForm struct {
	TranID         string `validate:"omitempty,max=30,printascii"`
	ValID          string `validate:"omitempty,max=100,printascii"`
	Amount         string `validate:"omitempty,numeric"`
	Currency       string `validate:"omitempty,max=8,alpha"`
	CurrencyAmount string `validate:"omitempty,numeric"`
	CurrencyType   string `validate:"omitempty,max=8,alpha"`
	Status         string `validate:"omitempty,max=40"`
	OrderID        string `validate:"omitempty,max=64,printascii"`
	UserID         string `validate:"omitempty,max=128"`
	VerifySign     string `validate:"omitempty,max=128"`
	VerifyKey      string `validate:"omitempty,max=2048"`
}
