// Package tokeniser counts generation-model tokens for context budgeting.
//
// The primary implementation wraps tiktoken's cl100k_base encoding, which
// tracks the OpenAI chat model family closely enough for budget purposes and
// is a reasonable approximation for local models. Because tiktoken fetches
// its encoding data lazily, the counter falls back to a bytes/4 estimate
// whenever the encoding cannot be initialised, so context assembly keeps
// working offline.
package tokeniser

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/veritas-labs/lexquery/internal/logger"
)

// Counter reports how many tokens a text occupies in the generation model's
// vocabulary. Implementations must be safe for concurrent use.
type Counter interface {
	Count(text string) int
}

const defaultEncoding = "cl100k_base"

// Tiktoken counts tokens using a tiktoken encoding. Initialisation is lazy
// because tiktoken may download encoding data on first use.
type Tiktoken struct {
	encoding string
	once     sync.Once
	enc      *tiktoken.Tiktoken
	initErr  error
	warned   sync.Once
}

// NewTiktoken returns a counter backed by the cl100k_base encoding.
func NewTiktoken() *Tiktoken {
	return &Tiktoken{encoding: defaultEncoding}
}

func (t *Tiktoken) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// Count returns the token count of text, or a bytes/4 estimate when the
// encoding is unavailable.
func (t *Tiktoken) Count(text string) int {
	if err := t.init(); err != nil {
		t.warned.Do(func() {
			logger.Warn("tokeniser: %v, falling back to estimate", err)
		})
		return Estimate{}.Count(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Estimate approximates token counts as bytes/4. It exists as the offline
// fallback and as a deterministic counter for tests.
type Estimate struct{}

func (Estimate) Count(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}
