package callnotes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/yanqian/callnotes/pkg/errors"
	"github.com/yanqian/callnotes/pkg/metrics"
)

const previewRunes = 60

// Assembler turns a transcript into a call note: chunk, summarize each chunk, join in order.
type Assembler struct {
	cfg        AssemblerConfig
	summarizer Summarizer
	tokens     TokenCounter
	logger     *slog.Logger
}

// NewAssembler constructs an Assembler. A nil TokenCounter falls back to word counts.
func NewAssembler(cfg AssemblerConfig, summarizer Summarizer, tokens TokenCounter, logger *slog.Logger) *Assembler {
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = DefaultMaxWords
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Assembler{
		cfg:        cfg,
		summarizer: summarizer,
		tokens:     tokens,
		logger:     logger.With("component", "callnotes.assembler"),
	}
}

// Ready reports whether the summarizer can be called.
func (a *Assembler) Ready() error {
	return a.summarizer.Ready()
}

// Assemble summarizes every chunk of transcript and joins the summaries with NoteSeparator.
// An empty transcript yields an empty note without remote calls. The first failing chunk
// aborts the whole assembly and no partial note is returned.
func (a *Assembler) Assemble(ctx context.Context, transcript string) (Notes, error) {
	chunks := Chunk(transcript, a.cfg.MaxWords)
	if len(chunks) == 0 {
		return Notes{}, nil
	}
	if err := a.summarizer.Ready(); err != nil {
		return Notes{}, err
	}

	stats := make([]ChunkStat, len(chunks))
	var usage metrics.TokenUsage
	for i, chunk := range chunks {
		stats[i] = ChunkStat{Index: i, Words: countWords(chunk), Tokens: a.countTokens(chunk)}
		usage.PromptTokens += stats[i].Tokens
	}
	usage.TotalTokens = usage.PromptTokens

	a.logger.Info("assembling call note", "chunks", len(chunks), "max_words", a.cfg.MaxWords, "concurrency", a.cfg.Concurrency, "estimated_tokens", usage.PromptTokens)

	var (
		summaries []string
		err       error
	)
	if a.cfg.Concurrency == 1 || len(chunks) == 1 {
		summaries, err = a.summarizeSequential(ctx, chunks)
	} else {
		summaries, err = a.summarizeParallel(ctx, chunks)
	}
	if err != nil {
		return Notes{}, err
	}
	metrics.ObserveNoteChunks(len(chunks))

	return Notes{
		Text:       strings.Join(summaries, NoteSeparator),
		Chunks:     stats,
		TokenUsage: usage,
	}, nil
}

func (a *Assembler) summarizeSequential(ctx context.Context, chunks []string) ([]string, error) {
	summaries := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		summary, err := a.summarizeChunk(ctx, i, len(chunks), chunk)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// summarizeParallel writes each result into its chunk's slot so completion order does not matter.
func (a *Assembler) summarizeParallel(ctx context.Context, chunks []string) ([]string, error) {
	summaries := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			summary, err := a.summarizeChunk(gctx, i, len(chunks), chunk)
			if err != nil {
				return err
			}
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (a *Assembler) summarizeChunk(ctx context.Context, index, total int, chunk string) (string, error) {
	summary, err := a.summarizer.Summarize(ctx, chunk)
	if err != nil {
		a.logger.Error("chunk summarization failed", "chunk", index+1, "chunks", total, "error", err)
		code := apperrors.CodeOf(err)
		if code == "" {
			code = apperrors.CodeRemoteService
		}
		return "", apperrors.Wrap(code, fmt.Sprintf("summarize chunk %d/%d %q", index+1, total, preview(chunk)), err)
	}
	a.logger.Debug("chunk summarized", "chunk", index+1, "chunks", total)
	return summary, nil
}

func (a *Assembler) countTokens(text string) int {
	if a.tokens == nil {
		return countWords(text)
	}
	return a.tokens.Count(text)
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes]) + "..."
}
