package ai

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"learnhub-billing/internal/domain/ports/adapter"
)

var _ adapter.TokenCounter = (*TiktokenCounter)(nil)

const fallbackEncoding = "cl100k_base"

// TiktokenCounter counts and truncates prompts with the model's BPE.
// Models tiktoken does not know use cl100k_base. If no encoding can be
// loaded at all, it estimates four bytes per token.
type TiktokenCounter struct {
	mu   sync.Mutex
	encs map[string]*tiktoken.Tiktoken
	log  *zerolog.Logger

	// loader is swapped in tests.
	loader func(model string) (*tiktoken.Tiktoken, error)
}

func NewTiktokenCounter(logger *zerolog.Logger) *TiktokenCounter {
	l := logger.With().Str("component", "Tokens").Logger()
	return &TiktokenCounter{
		encs:   make(map[string]*tiktoken.Tiktoken),
		log:    &l,
		loader: loadEncoding,
	}
}

func loadEncoding(model string) (*tiktoken.Tiktoken, error) {
	if enc, err := tiktoken.EncodingForModel(model); err == nil {
		return enc, nil
	}
	return tiktoken.GetEncoding(fallbackEncoding)
}

func (c *TiktokenCounter) encoding(model string) *tiktoken.Tiktoken {
	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encs[model]; ok {
		return enc
	}
	enc, err := c.loader(model)
	if err != nil {
		c.log.Warn().Err(err).Str("model", model).Msg("tokenizer unavailable; estimating")
		enc = nil
	}
	c.encs[model] = enc
	return enc
}

func (c *TiktokenCounter) Count(model, text string) int {
	if text == "" {
		return 0
	}
	if enc := c.encoding(model); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}

func (c *TiktokenCounter) Truncate(model, text string, max int) string {
	if max <= 0 {
		return ""
	}
	if enc := c.encoding(model); enc != nil {
		toks := enc.Encode(text, nil, nil)
		if len(toks) <= max {
			return text
		}
		return enc.Decode(toks[:max])
	}
	limit := max * 4
	if len(text) <= limit {
		return text
	}
	cut := text[:limit]
	for !utf8.ValidString(cut) && len(cut) > 0 {
		cut = cut[:len(cut)-1]
	}
	return cut
}
