package tokenizer

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding matches the chat models most OpenAI-compatible gateways serve.
const DefaultEncoding = "cl100k_base"

type loader func(encoding string) (*tiktoken.Tiktoken, error)

// Counter estimates prompt tokens with a BPE encoding, or word counts when the encoding
// cannot be loaded. The encoding is loaded on first use.
type Counter struct {
	encoding string
	load     loader
	logger   *slog.Logger

	once sync.Once
	bpe  *tiktoken.Tiktoken
}

// New builds a Counter for encoding (DefaultEncoding when empty).
func New(encoding string, logger *slog.Logger) *Counter {
	return newCounter(encoding, tiktoken.GetEncoding, logger)
}

func newCounter(encoding string, load loader, logger *slog.Logger) *Counter {
	if strings.TrimSpace(encoding) == "" {
		encoding = DefaultEncoding
	}
	return &Counter{
		encoding: encoding,
		load:     load,
		logger:   logger.With("component", "tokenizer"),
	}
}

// Count returns the estimated token count of text.
func (c *Counter) Count(text string) int {
	c.once.Do(c.init)
	if c.bpe == nil {
		return len(strings.Fields(text))
	}
	return len(c.bpe.Encode(text, nil, nil))
}

func (c *Counter) init() {
	bpe, err := c.load(c.encoding)
	if err != nil {
		c.logger.Warn("token encoding unavailable, counting words", "encoding", c.encoding, "error", err)
		return
	}
	c.bpe = bpe
}
