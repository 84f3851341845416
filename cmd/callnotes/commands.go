package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yanqian/callnotes/internal/domain/callnotes"
	"github.com/yanqian/callnotes/internal/watcher"
	"github.com/yanqian/callnotes/pkg/logger"
)

// cli is the wired runtime shared by every subcommand.
type cli struct {
	svc    callnotes.Service
	logger *slog.Logger
}

type cliFactory func() (*cli, func(), error)

func newCLI(svc callnotes.Service, logger *slog.Logger) *cli {
	return &cli{svc: svc, logger: logger.With("component", "cli")}
}

// provideCLILogger writes to stderr so stdout carries only the note.
func provideCLILogger() *slog.Logger {
	format := os.Getenv("LOG_FORMAT")
	if format == "" {
		format = "text"
	}
	return logger.NewWithWriter(os.Stderr, os.Getenv("LOG_LEVEL"), format)
}

func newRootCmd(factory cliFactory) *cobra.Command {
	root := &cobra.Command{
		Use:   "callnotes",
		Short: "Turn customer service call recordings into call notes",
		Long: `callnotes transcribes a call recording, splits the transcript into chunks,
summarizes every chunk with an LLM and joins the summaries into one call note.

Configuration comes from configs/config.yaml (or CONFIG_PATH), .env and environment
variables such as LLM_API_KEY / OPENROUTER_API_KEY.`,
		SilenceUsage: true,
	}
	root.AddCommand(
		newProcessCmd(factory),
		newNotesCmd(factory),
		newWatchCmd(factory),
	)
	return root
}

func newProcessCmd(factory cliFactory) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "process <audio>",
		Short: "Transcribe a WAV/MP3 recording and write the transcript and call note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := factory()
			if err != nil {
				return err
			}
			defer cleanup()

			session, err := app.processFile(cmd.Context(), args[0], outDir)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), session.Notes)
			return err
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory for call_transcript.txt and call_notes.txt")
	return cmd
}

func newNotesCmd(factory cliFactory) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "notes <transcript-file>",
		Short: "Summarize an existing transcript (use - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			transcript, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			app, cleanup, err := factory()
			if err != nil {
				return err
			}
			defer cleanup()

			session, err := app.svc.Summarize(cmd.Context(), transcript)
			if err != nil {
				return err
			}
			if outDir != "" {
				if err := app.writeArtifacts(cmd.Context(), session, outDir, callnotes.ArtifactNotes); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), session.Notes)
			return err
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "also write call_notes.txt into this directory")
	return cmd
}

func newWatchCmd(factory cliFactory) *cobra.Command {
	var (
		outDir      string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Process every WAV/MP3 recording dropped into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			if outDir == "" {
				outDir = filepath.Join(dir, "notes")
			}
			app, cleanup, err := factory()
			if err != nil {
				return err
			}
			defer cleanup()

			handler := func(ctx context.Context, path string) error {
				stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				_, err := app.processFile(ctx, path, filepath.Join(outDir, stem))
				return err
			}
			w, err := watcher.New(dir, handler, watcher.Options{
				Accept:        func(path string) bool { return callnotes.IsSupportedAudio(path, "") },
				MaxConcurrent: concurrency,
			}, app.logger)
			if err != nil {
				return err
			}
			defer w.Close()

			err = w.Run(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output root (default <dir>/notes)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 2, "recordings processed at once")
	return cmd
}

func (c *cli) processFile(ctx context.Context, path, outDir string) (callnotes.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return callnotes.Session{}, fmt.Errorf("read audio: %w", err)
	}
	audio := callnotes.Audio{
		Filename: filepath.Base(path),
		MimeType: callnotes.AudioMimeType(path, ""),
		Data:     data,
	}
	session, err := c.svc.Process(ctx, audio)
	if err != nil {
		return callnotes.Session{}, err
	}
	if err := c.writeArtifacts(ctx, session, outDir, callnotes.ArtifactTranscript, callnotes.ArtifactNotes); err != nil {
		return callnotes.Session{}, err
	}
	c.logger.Info("call processed", "path", path, "out", outDir, "chunks", len(session.Chunks))
	return session, nil
}

func (c *cli) writeArtifacts(ctx context.Context, session callnotes.Session, dir string, kinds ...callnotes.ArtifactKind) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, kind := range kinds {
		artifact, err := c.svc.Artifact(ctx, session.ID, kind)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, artifact.Filename), artifact.Content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", artifact.Filename, err)
		}
	}
	return nil
}

func readInput(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return string(data), nil
}
