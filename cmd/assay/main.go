package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/deepnoodle-ai/assay"
	"github.com/deepnoodle-ai/assay/analyzers"
	"github.com/deepnoodle-ai/assay/badgerstore"
)

var (
	dataDir    string
	verbose    bool
	jsonOutput bool
)

func main() {
	root := &cobra.Command{
		Use:           "assay",
		Short:         "AI-suitability assessment pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDataDir(), "directory for checkpoints and logs")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		runCommand(),
		resumeCommand(),
		answerCommand(),
		statusCommand(),
		listCommand(),
		deleteCommand(),
	)

	if err := root.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".assay"
	}
	return filepath.Join(homeDir, ".deepnoodle", "assay")
}

func setupLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return assay.NewLogger(level)
}

func openStore(logger *slog.Logger) (*badgerstore.Store, error) {
	return badgerstore.New(badgerstore.Options{
		Path:   filepath.Join(dataDir, "checkpoints"),
		Logger: logger,
	})
}

func runCommand() *cobra.Command {
	var problemContext string
	var threadID string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run <problem>",
		Short: "Start a new assessment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			store, err := openStore(logger)
			if err != nil {
				return err
			}
			defer store.Close()

			analysisLogger, err := assay.NewFileAnalysisLogger(filepath.Join(dataDir, "logs"))
			if err != nil {
				return err
			}

			execution, err := assay.NewExecution(assay.ExecutionOptions{
				Input:          assay.ProblemInput{Problem: args[0], Context: problemContext},
				ThreadID:       threadID,
				Analyzers:      analyzers.Set(),
				Checkpointer:   store,
				Logger:         logger,
				AnalysisLogger: analysisLogger,
				Events:         printEvent,
			})
			if err != nil {
				return err
			}

			color.Blue("Thread: %s", execution.ThreadID())
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			outcome, err := execution.Run(ctx)
			if err != nil {
				return err
			}
			return printOutcome(outcome)
		},
	}
	cmd.Flags().StringVarP(&problemContext, "context", "c", "", "operational context for the problem")
	cmd.Flags().StringVar(&threadID, "thread", "", "thread ID (generated if empty)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "overall run timeout")
	return cmd
}

func resumeCommand() *cobra.Command {
	var answers []string

	cmd := &cobra.Command{
		Use:   "resume <thread-id>",
		Short: "Resume a suspended assessment with answers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			answerMap := map[string]string{}
			for _, pair := range answers {
				id, text, ok := strings.Cut(pair, "=")
				if !ok {
					return fmt.Errorf("invalid answer %q, expected question-id=text", pair)
				}
				answerMap[id] = text
			}

			logger := setupLogger()
			store, err := openStore(logger)
			if err != nil {
				return err
			}
			defer store.Close()

			execution, err := assay.NewExecution(assay.ExecutionOptions{
				ThreadID:     args[0],
				Analyzers:    analyzers.Set(),
				Checkpointer: store,
				Logger:       logger,
				Events:       printEvent,
			})
			if err != nil {
				return err
			}
			outcome, err := execution.ResumeWithAnswers(cmd.Context(), answerMap)
			if err != nil {
				return err
			}
			return printOutcome(outcome)
		},
	}
	cmd.Flags().StringArrayVarP(&answers, "answer", "a", nil, "answer as question-id=text (repeatable)")
	return cmd
}

// answerCommand records an answer to a non-blocking question between runs.
// The answer lands in a fresh checkpoint and is visible to later stages the
// next time the thread runs.
func answerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "answer <thread-id> <question-id> <text>",
		Short: "Answer a helpful question out of band",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			store, err := openStore(logger)
			if err != nil {
				return err
			}
			defer store.Close()

			cp, _, err := store.Latest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if cp == nil {
				return assay.ErrThreadNotFound
			}
			state, err := cp.State.WithAnswer(args[1], args[2])
			if err != nil {
				return err
			}
			next := assay.NewCheckpoint(state, assay.TriggerAnswerReceived, cp.ID)
			if _, err := store.Put(cmd.Context(), args[0], next, nil); err != nil {
				return err
			}
			color.Green("Recorded answer for %s", args[1])
			return nil
		},
	}
}

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <thread-id>",
		Short: "Show the current status of a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			store, err := openStore(logger)
			if err != nil {
				return err
			}
			defer store.Close()

			status, err := assay.ReadStatus(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(status)
			}
			color.Cyan("Thread:    %s", status.ThreadID)
			color.White("Stage:     %s", status.Stage)
			if status.Complete {
				color.Green("Complete")
			}
			if status.Suspended {
				color.Yellow("Suspended, waiting on answers")
			}
			if len(status.CompletedDimensions) > 0 {
				color.White("Scored:    %s", strings.Join(status.CompletedDimensions, ", "))
			}
			if len(status.FailedDimensions) > 0 {
				color.Red("Failed:    %s", strings.Join(status.FailedDimensions, ", "))
			}
			for _, q := range status.PendingQuestions {
				marker := "helpful"
				if q.Blocking {
					marker = "blocking"
				}
				color.Yellow("Question [%s] %s: %s", marker, q.ID, q.Text)
			}
			if status.Verdict != "" {
				color.Green("Verdict:   %s", status.Verdict)
			}
			return nil
		},
	}
}

func listCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list <thread-id>",
		Short: "List checkpoints for a thread, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			store, err := openStore(logger)
			if err != nil {
				return err
			}
			defer store.Close()

			metas, err := store.List(cmd.Context(), args[0], assay.ListOptions{Limit: limit})
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(metas)
			}
			for _, meta := range metas {
				fmt.Printf("%s  %-20s %-12s %s\n",
					meta.CreatedAt.Format(time.RFC3339),
					meta.Trigger, meta.Stage, meta.CheckpointID)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum checkpoints to list")
	return cmd
}

func deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <thread-id>",
		Short: "Delete all checkpoint data for a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			store, err := openStore(logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteThread(cmd.Context(), args[0]); err != nil {
				return err
			}
			color.Green("Deleted thread %s", args[0])
			return nil
		},
	}
}

func printEvent(event assay.Event) {
	switch e := event.(type) {
	case assay.StageStarted:
		color.Cyan("▶ %s", e.Stage)
	case assay.StageCompleted:
		color.Cyan("✓ %s", e.Stage)
	case assay.StageRetrying:
		color.Yellow("↻ retrying %s (attempt %d, %s)", e.Stage, e.Attempt, e.ErrorType)
	case assay.DimensionCompleted:
		if e.Result.Status == assay.ResultStatusScored {
			color.Green("  %-20s %s (%.2f)", e.Result.Dimension, e.Result.Score, e.Result.Confidence)
		} else {
			color.Red("  %-20s failed: %s", e.Result.Dimension, e.Result.Error)
		}
	case assay.AnalyzerQuestion:
		marker := "helpful"
		if e.Question.Blocking {
			marker = "blocking"
		}
		color.Yellow("? [%s] %s: %s", marker, e.Question.ID, e.Question.Text)
	case assay.PipelineSuspended:
		color.Yellow("⏸ suspended in %s, answer with: assay resume <thread> -a <id>=<text>", e.Stage)
	case assay.ErrorEvent:
		color.Red("✗ %s: %s", e.Stage, e.Message)
	}
}

func printOutcome(outcome *assay.Outcome) error {
	if jsonOutput {
		return printJSON(outcome)
	}
	switch outcome.Status {
	case assay.OutcomeCompleted:
		report := outcome.Report
		color.Green("\nDecision: %s (confidence %.2f)", report.Verdict.Decision, report.Verdict.Confidence)
		if report.Synthesis != nil {
			fmt.Println(report.Synthesis.Narrative)
			color.White("Recommendation: %s", report.Synthesis.Recommendation)
		}
		if len(report.Errors) > 0 {
			color.Yellow("%d errors were recorded during the run", len(report.Errors))
		}
	case assay.OutcomeSuspended:
		color.Yellow("\nSuspended in %s with %d pending question(s)", outcome.Stage, len(outcome.PendingQuestions))
	case assay.OutcomeFailed:
		color.Red("\nFailed in %s", outcome.Stage)
	}
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
