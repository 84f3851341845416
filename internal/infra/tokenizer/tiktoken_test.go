package tokenizer

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/pkoukk/tiktoken-go"
	"github.com/stretchr/testify/require"
)

func TestCounterFallsBackToWordCount(t *testing.T) {
	calls := 0
	counter := newCounter("", func(encoding string) (*tiktoken.Tiktoken, error) {
		calls++
		require.Equal(t, DefaultEncoding, encoding)
		return nil, errors.New("offline")
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.Equal(t, 4, counter.Count("the customer called twice"))
	require.Equal(t, 0, counter.Count("   "))
	require.Equal(t, 1, calls)
}
