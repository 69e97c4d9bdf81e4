// File: internal/usecase/assistant_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"learnhub-billing/internal/domain"
	"learnhub-billing/internal/domain/model"
	"learnhub-billing/internal/domain/ports/adapter"
	"learnhub-billing/internal/infra/logging"
	"learnhub-billing/internal/infra/metrics"
)

// Compile-time check
var _ AssistantUseCase = (*assistantUC)(nil)

// AssistantMode selects the AI feature; each mode has its own quota.
type AssistantMode string

const (
	ModeQA   AssistantMode = "qa"
	ModeQuiz AssistantMode = "quiz"
	ModeChat AssistantMode = "chat"
)

func (m AssistantMode) UsageType() (model.UsageType, bool) {
	switch m {
	case ModeQA, "":
		return model.UsageAIQA, true
	case ModeQuiz:
		return model.UsageQuizGenerator, true
	case ModeChat:
		return model.UsageAIChat, true
	}
	return "", false
}

type AskRequest struct {
	UserID    string
	ChapterID string
	Mode      AssistantMode
	Question  string
}

type Answer struct {
	Text  string            `json:"text"`
	Model string            `json:"model"`
	Usage adapter.Usage     `json:"usage"`
	Quota model.QuotaResult `json:"quota"`
}

type AssistantUseCase interface {
	// Ask gates the call on chapter access, then quota, then calls the LLM.
	Ask(ctx context.Context, req AskRequest) (*Answer, error)
}

type AssistantConfig struct {
	Model           string
	MaxPromptTokens int
}

type assistantUC struct {
	access AccessUseCase
	quota  QuotaUseCase
	ai     adapter.AIServiceAdapter
	tokens adapter.TokenCounter
	cfg    AssistantConfig
	log    *zerolog.Logger
}

func NewAssistantUseCase(access AccessUseCase, quota QuotaUseCase, ai adapter.AIServiceAdapter, tokens adapter.TokenCounter, cfg AssistantConfig, logger *zerolog.Logger) *assistantUC {
	if cfg.MaxPromptTokens <= 0 {
		cfg.MaxPromptTokens = 3000
	}
	l := logger.With().Str("component", "AssistantUC").Logger()
	return &assistantUC{access: access, quota: quota, ai: ai, tokens: tokens, cfg: cfg, log: &l}
}

func (u *assistantUC) Ask(ctx context.Context, req AskRequest) (*Answer, error) {
	defer logging.TraceDuration(u.log, "AssistantUC.Ask")()

	if req.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question text required", domain.ErrInvalidArgument)
	}
	usage, ok := req.Mode.UsageType()
	if !ok {
		return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidArgument, req.Mode)
	}

	acc, err := u.access.Authorize(ctx, req.UserID, req.ChapterID)
	if err != nil {
		return nil, err
	}
	q, err := u.quota.CheckAndIncrement(ctx, req.UserID, usage)
	if err != nil {
		return nil, err
	}

	msgs := u.prompt(req.Mode, acc.Chapter, question)
	start := time.Now()
	text, use, err := u.ai.ChatWithUsage(ctx, u.cfg.Model, msgs)
	latency := int(time.Since(start).Milliseconds())
	metrics.ObserveChatUsage(u.ai.Name(), u.cfg.Model, use.PromptTokens, use.CompletionTokens, use.TotalTokens, latency, err == nil)
	if err != nil {
		logging.With(ctx, u.log).Error().Err(err).Str("provider", u.ai.Name()).Msg("llm call failed")
		return nil, fmt.Errorf("assistant: %w", err)
	}
	return &Answer{Text: text, Model: u.cfg.Model, Usage: use, Quota: q}, nil
}

func (u *assistantUC) prompt(mode AssistantMode, ch *model.Chapter, question string) []adapter.Message {
	var sys strings.Builder
	switch mode {
	case ModeQuiz:
		sys.WriteString("Write a short multiple-choice quiz for a student about the chapter below.")
	case ModeChat:
		sys.WriteString("You are a friendly tutor discussing the chapter below with a student.")
	default:
		sys.WriteString("Answer the student's question using the chapter below.")
	}
	if ch != nil {
		fmt.Fprintf(&sys, "\nChapter: %s", ch.Title)
		if ch.Summary != "" {
			fmt.Fprintf(&sys, "\n%s", ch.Summary)
		}
	}
	system := sys.String()

	budget := u.cfg.MaxPromptTokens
	if u.tokens != nil {
		budget -= u.tokens.Count(u.cfg.Model, system)
		if budget < 1 {
			budget = 1
		}
		question = u.tokens.Truncate(u.cfg.Model, question, budget)
	}
	return []adapter.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: question},
	}
}
