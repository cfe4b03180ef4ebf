package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"osl/internal/bootstrap"
	coachdto "osl/internal/modules/coach/dto"
	"osl/internal/platform/config"
	apperrors "osl/internal/platform/errors"
	"osl/internal/ui/render"
	"osl/internal/ui/theme"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, theme.Fail.Render("error:"), err)
		if hint := apperrors.FlattenHints(err); hint != "" {
			_, _ = fmt.Fprintln(os.Stderr, theme.Muted.Render("hint: "+hint))
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootPath := os.Getenv("OSL_ROOT")
	if rootPath == "" {
		rootPath = "."
	}

	root := &cobra.Command{
		Use:           "osl",
		Short:         "Book-study protocol tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&rootPath, "root", rootPath, "osl base directory (holds ai_state and obsidian)")

	root.AddCommand(newInitCmd(&rootPath))
	root.AddCommand(newStateCmd(&rootPath))
	root.AddCommand(newBookCmd(&rootPath))
	root.AddCommand(newMetricsCmd(&rootPath))
	root.AddCommand(newGovernanceCmd(&rootPath))
	root.AddCommand(newSessionCmd(&rootPath))
	root.AddCommand(newMigrateCmd(&rootPath))
	return root
}

// withApp loads config, wires the app and releases it once fn returns.
func withApp(rootPath string, fn func(app *bootstrap.App) error) error {
	cfg, err := config.New(rootPath)
	if err != nil {
		return err
	}
	app, err := bootstrap.New(cfg)
	if err != nil {
		return err
	}
	runErr := fn(app)
	if err := app.Close(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func newInitCmd(rootPath *string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the state and vault directories and a default coach state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(*rootPath, func(app *bootstrap.App) error {
				out, err := app.CoachCLI.Init(context.Background(), force)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(w, "initialized osl at %s (schema %s)\n", app.Config.Root, out.Version)
				for _, dir := range out.Created {
					_, _ = fmt.Fprintf(w, "  created %s\n", dir)
				}
				_, _ = fmt.Fprintln(w, theme.Muted.Render("next: osl book add --title <title> --pages <n>, then osl metrics set"))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing coach state")
	return cmd
}

func newStateCmd(rootPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show books, metrics and governance status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(*rootPath, func(app *bootstrap.App) error {
				out, err := app.CoachCLI.Show(context.Background())
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), render.State(out))
				return nil
			})
		},
	}
}

func newBookCmd(rootPath *string) *cobra.Command {
	book := &cobra.Command{Use: "book", Short: "Tracked books"}

	var title, author, pdfPath string
	var pages, currentPage int
	add := &cobra.Command{
		Use:   "add --title <title> (--pages <n> | --pdf <path>)",
		Short: "Start tracking a book",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(title) == "" {
				return fmt.Errorf("--title is required")
			}
			return withApp(*rootPath, func(app *bootstrap.App) error {
				out, err := app.CoachCLI.AddBook(context.Background(), title, author, pages, currentPage, pdfPath)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s) %d pages\n", out.Title, out.ID, out.TotalPages)
				return nil
			})
		},
	}
	add.Flags().StringVar(&title, "title", "", "book title")
	add.Flags().StringVar(&author, "author", "", "book author")
	add.Flags().IntVar(&pages, "pages", 0, "total pages (counted from --pdf when omitted)")
	add.Flags().IntVar(&currentPage, "current-page", 0, "page already reached")
	add.Flags().StringVar(&pdfPath, "pdf", "", "PDF to count pages from")

	show := &cobra.Command{
		Use:   "show <book-id>",
		Short: "Show a book with its indexed session stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*rootPath, func(app *bootstrap.App) error {
				ctx := context.Background()
				b, err := app.CoachCLI.GetBook(ctx, args[0])
				if err != nil {
					return err
				}
				stats, err := app.SessionCLI.BookStats(ctx, b.ID)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(w, "id: %s\ntitle: %s\nauthor: %s\nprogress: %d/%d (%.1f%%)\nsessions: %d (%.1fh)\nretrieval: %.1f%%\n",
					b.ID, b.Title, b.Author, b.CurrentPage, b.TotalPages, b.Progress, b.SessionsCompleted, b.TotalHours, b.AvgRetrievalScore)
				_, _ = fmt.Fprintf(w, "transfer project: %s\n", formatTime(b.LastTransferProject))
				_, _ = fmt.Fprintf(w, "indexed: %d sessions, %d minutes, %d flashcards, last %s\n",
					stats.Sessions, stats.TotalMinutes, stats.Flashcards, formatTime(stats.LastSession))
				return nil
			})
		},
	}

	project := &cobra.Command{
		Use:   "project <book-id>",
		Short: "Record a transfer project for a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*rootPath, func(app *bootstrap.App) error {
				b, err := app.CoachCLI.RecordTransferProject(context.Background(), args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "transfer project recorded for %s at %s\n", b.Title, formatTime(b.LastTransferProject))
				return nil
			})
		},
	}

	book.AddCommand(add, show, project)
	return book
}

func newMetricsCmd(rootPath *string) *cobra.Command {
	metrics := &cobra.Command{Use: "metrics", Short: "Performance metrics fed into the gates"}

	var retrieval, prediction float64
	var throughput, due, interleaving int
	set := &cobra.Command{
		Use:   "set",
		Short: "Update the metrics you pass; others keep their value",
		RunE: func(cmd *cobra.Command, _ []string) error {
			input := coachdto.MetricsInput{}
			flags := cmd.Flags()
			if flags.Changed("retrieval") {
				input.AvgRetrieval7d = &retrieval
			}
			if flags.Changed("prediction") {
				input.AvgPredictionAccuracy7d = &prediction
			}
			if flags.Changed("throughput") {
				input.DailyReviewThroughput = &throughput
			}
			if flags.Changed("cards-due") {
				input.CardsDue = &due
			}
			if flags.Changed("interleaving") {
				input.InterleavingSessionsWeek = &interleaving
			}
			return withApp(*rootPath, func(app *bootstrap.App) error {
				out, err := app.CoachCLI.UpdateMetrics(context.Background(), input)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "retrieval %.1f%%  prediction %.1f%%  due %d  throughput %d  debt ratio %.2f  interleaving %d\n",
					out.AvgRetrieval7d, out.AvgPredictionAccuracy7d, out.CardsDue, out.DailyReviewThroughput, out.CardDebtRatio, out.InterleavingSessionsWeek)
				return nil
			})
		},
	}
	set.Flags().Float64Var(&retrieval, "retrieval", 0, "7-day average retrieval score (0-100)")
	set.Flags().Float64Var(&prediction, "prediction", 0, "7-day average prediction accuracy (0-100)")
	set.Flags().IntVar(&throughput, "throughput", 0, "daily review throughput")
	set.Flags().IntVar(&due, "cards-due", 0, "cards currently due")
	set.Flags().IntVar(&interleaving, "interleaving", 0, "interleaving sessions this week")

	metrics.AddCommand(set)
	return metrics
}

func newGovernanceCmd(rootPath *string) *cobra.Command {
	governance := &cobra.Command{Use: "governance", Short: "Quality gates and recovery"}

	governance.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Evaluate every gate and update the recovery state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(*rootPath, func(app *bootstrap.App) error {
				out, err := app.GovernanceCLI.Check(context.Background())
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), render.Gates(out))
				return nil
			})
		},
	})

	governance.AddCommand(&cobra.Command{
		Use:   "advance <state>",
		Short: "Move the recovery state by hand, e.g. BLOCKED to REMEDIATION",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*rootPath, func(app *bootstrap.App) error {
				out, err := app.GovernanceCLI.Advance(context.Background(), args[0])
				if err != nil {
					return err
				}
				if !out.Valid {
					return rejected(cmd.OutOrStdout(), render.Rejection(out.From, out.To, out.Error, out.Suggestion, out.Allowed, nil))
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "recovery %s -> %s\n", out.From, out.To)
				return nil
			})
		},
	})

	governance.AddCommand(&cobra.Command{
		Use:   "thresholds",
		Short: "List tunable thresholds and their ranges",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(*rootPath, func(app *bootstrap.App) error {
				out, err := app.CoachCLI.Show(context.Background())
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), render.Thresholds(out.Thresholds))
				return nil
			})
		},
	})

	governance.AddCommand(&cobra.Command{
		Use:   "tune <threshold> <value>",
		Short: "Set a threshold within its allowed range",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("value must be a number: %w", err)
			}
			return withApp(*rootPath, func(app *bootstrap.App) error {
				out, err := app.CoachCLI.TuneThreshold(context.Background(), args[0], value)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s = %g (range %g..%g)\n", out.Name, out.Current, out.Min, out.Max)
				return nil
			})
		},
	})
	return governance
}

func newSessionCmd(rootPath *string) *cobra.Command {
	session := &cobra.Command{Use: "session", Short: "Study session workflow"}

	var book, kind string
	start := &cobra.Command{
		Use:   "start [--book <id|title>] [--type standard|review|interleaved]",
		Short: "Start a session if the gates allow it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(*rootPath, func(app *bootstrap.App) error {
				out, err := app.SessionCLI.Start(context.Background(), book, kind)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(w, "session %s started for %s (%s), up to %d new cards\n", out.SessionID, out.BookTitle, out.Type, out.MaxFlashcards)
				for _, g := range out.Gates {
					if !g.Passing {
						_, _ = fmt.Fprintf(w, "  %s %s: %s\n", theme.Hot.Render("!"), g.Gate, g.Status)
					}
				}
				_, _ = fmt.Fprintln(w, render.Actions(out.NextActions))
				return nil
			})
		},
	}
	start.Flags().StringVar(&book, "book", "", "book id or title (defaults to the only tracked book)")
	start.Flags().StringVar(&kind, "type", "standard", "session type")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the active session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(*rootPath, func(app *bootstrap.App) error {
				out, err := app.SessionCLI.GetActive(context.Background())
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), render.Session(out, time.Now()))
				return nil
			})
		},
	}

	var pairs []string
	var contextFile string
	transition := &cobra.Command{
		Use:   "transition <state> [--set key=value ...]",
		Short: "Move the session to the next workflow state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := parseContext(contextFile, pairs)
			if err != nil {
				return err
			}
			return withApp(*rootPath, func(app *bootstrap.App) error {
				out, err := app.SessionCLI.Transition(context.Background(), args[0], input)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if out.TimeoutExceeded {
					_, _ = fmt.Fprintln(w, theme.Hot.Render(out.TimeoutMessage))
				}
				if !out.Valid {
					return rejected(w, render.Rejection(out.From, out.To, out.Error, out.Suggestion, out.Allowed, out.Missing))
				}
				_, _ = fmt.Fprintf(w, "%s -> %s\n", out.From, out.State)
				_, _ = fmt.Fprintln(w, render.Actions(out.NextActions))
				return nil
			})
		},
	}
	transition.Flags().StringArrayVar(&pairs, "set", nil, "context value as key=value (repeatable)")
	transition.Flags().StringVar(&contextFile, "input", "", "YAML or JSON file with context values")

	next := &cobra.Command{
		Use:   "next",
		Short: "List the legal next steps",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(*rootPath, func(app *bootstrap.App) error {
				out, err := app.SessionCLI.NextActions(context.Background())
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "state: %s\n%s\n", out.State, render.Actions(out.Actions))
				return nil
			})
		},
	}

	timeout := &cobra.Command{
		Use:   "timeout",
		Short: "Check whether the current state has run over its time limit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(*rootPath, func(app *bootstrap.App) error {
				out, err := app.SessionCLI.CheckTimeout(context.Background())
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if !out.Exceeded {
					_, _ = fmt.Fprintf(w, "%s within its time limit\n", out.State)
					return nil
				}
				_, _ = fmt.Fprintln(w, theme.Hot.Render(out.Message))
				if out.Suggestion != "" {
					_, _ = fmt.Fprintln(w, theme.Muted.Render(out.Suggestion))
				}
				return nil
			})
		},
	}

	var force bool
	end := &cobra.Command{
		Use:   "end [--force]",
		Short: "Close, archive and index the active session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(*rootPath, func(app *bootstrap.App) error {
				out, err := app.SessionCLI.End(context.Background(), force)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if !out.Valid {
					_, _ = fmt.Fprintln(w, theme.Muted.Render("pass --force to end anyway"))
					return rejected(w, render.Rejection("", "SESSION_END", out.Error, out.Suggestion, out.Allowed, nil))
				}
				label := "session ended"
				if out.Forced {
					label = "session ended (forced)"
				}
				_, _ = fmt.Fprintf(w, "%s: %s after %d min, %d cards\n", label, out.SessionID, out.DurationMinutes, out.FlashcardsCreated)
				_, _ = fmt.Fprintf(w, "book at page %d (%.1f%%)\n", out.BookCurrentPage, out.BookProgress)
				_, _ = fmt.Fprintf(w, "archive: %s\n", out.ArchivePath)
				if out.NotePath != "" {
					_, _ = fmt.Fprintf(w, "note: %s\n", out.NotePath)
				}
				if out.GatesNeedAttention {
					_, _ = fmt.Fprintf(w, "%s governance is %s, run 'osl governance check'\n", theme.Hot.Render("!"), out.GovernanceOverall)
				}
				return nil
			})
		},
	}
	end.Flags().BoolVar(&force, "force", false, "end from any state and record the forced exit")

	session.AddCommand(start, status, transition, next, timeout, end, newMisconceptionCmd(rootPath), newReindexCmd(rootPath), newHistoryCmd(rootPath))
	return session
}

func newMisconceptionCmd(rootPath *string) *cobra.Command {
	misconception := &cobra.Command{Use: "misconception", Short: "Track misconceptions found during the session"}

	var source string
	add := &cobra.Command{
		Use:   "add <description>",
		Short: "Record a misconception",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*rootPath, func(app *bootstrap.App) error {
				out, err := app.SessionCLI.RecordMisconception(context.Background(), args[0], source)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "misconception %s recorded (%s)\n", out.ID, out.Source)
				return nil
			})
		},
	}
	add.Flags().StringVar(&source, "source", "", "where it came from (defaults to the current pages)")

	resolve := &cobra.Command{
		Use:   "resolve <id> <correction>",
		Short: "Mark a misconception resolved",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*rootPath, func(app *bootstrap.App) error {
				out, err := app.SessionCLI.ResolveMisconception(context.Background(), args[0], args[1])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "misconception %s resolved\n", out.ID)
				return nil
			})
		},
	}

	misconception.AddCommand(add, resolve)
	return misconception
}

func newReindexCmd(rootPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the session index from the archive",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(*rootPath, func(app *bootstrap.App) error {
				n, err := app.SessionCLI.Reindex(context.Background())
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "indexed %d archived sessions\n", n)
				return nil
			})
		},
	}
}

func newHistoryCmd(rootPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent archived sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(*rootPath, func(app *bootstrap.App) error {
				rows, err := app.SessionCLI.Recent(context.Background(), limit)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if len(rows) == 0 {
					_, _ = fmt.Fprintln(w, "no archived sessions")
					return nil
				}
				for _, r := range rows {
					retrieval := "n/a"
					if r.AvgRetrieval != nil {
						retrieval = fmt.Sprintf("%.1f%%", *r.AvgRetrieval)
					}
					_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%dmin\t%d loops\t%d cards\t%s\n",
						r.StartedAt.Local().Format("2006-01-02 15:04"), r.BookTitle, r.Type, r.DurationMinutes, r.MicroLoops, r.Flashcards, retrieval)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of sessions")
	return cmd
}

func newMigrateCmd(rootPath *string) *cobra.Command {
	migrate := &cobra.Command{Use: "migrate", Short: "Schema migrations for state documents"}

	migrate.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Migrate every state document to the current schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(*rootPath, func(app *bootstrap.App) error {
				out, err := app.MigrationCLI.Run(context.Background())
				w := cmd.OutOrStdout()
				for _, f := range out.Files {
					switch {
					case f.Error != "":
						_, _ = fmt.Fprintf(w, "%s %s: %s\n", theme.Fail.Render("failed"), f.Path, f.Error)
					case f.Migrated:
						_, _ = fmt.Fprintf(w, "migrated %s %s -> %s (backup %s)\n", f.Path, f.FromVersion, f.ToVersion, f.Backup)
					default:
						_, _ = fmt.Fprintf(w, "current %s\n", f.Path)
					}
				}
				if err != nil {
					return err
				}
				if out.Failed > 0 {
					return fmt.Errorf("%d documents failed to migrate", out.Failed)
				}
				return nil
			})
		},
	})

	migrate.AddCommand(&cobra.Command{
		Use:   "file <path>",
		Short: "Migrate a single document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*rootPath, func(app *bootstrap.App) error {
				out, err := app.MigrationCLI.File(context.Background(), args[0])
				if err != nil {
					return err
				}
				if !out.Migrated {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s already at %s\n", out.Path, out.ToVersion)
					return nil
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "migrated %s -> %s (backup %s)\n", out.FromVersion, out.ToVersion, out.Backup)
				return nil
			})
		},
	})

	migrate.AddCommand(&cobra.Command{
		Use:   "pending",
		Short: "List documents behind the current schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(*rootPath, func(app *bootstrap.App) error {
				pending, err := app.MigrationCLI.Pending(context.Background())
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "all documents current")
					return nil
				}
				for _, p := range pending {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.Version, p.Path)
				}
				return nil
			})
		},
	})

	migrate.AddCommand(&cobra.Command{
		Use:   "report",
		Short: "Summarize the migration log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(*rootPath, func(app *bootstrap.App) error {
				out, err := app.MigrationCLI.Report(context.Background())
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "schema %s: %d migrations (%d ok, %d failed), %d files, last %s\n",
					out.CurrentVersion, out.Total, out.Successful, out.Failed, out.FilesMigrated, formatTime(out.LastMigration))
				return nil
			})
		},
	})
	return migrate
}

// rejected prints a refused change and returns an error so the exit code reflects it.
func rejected(w io.Writer, rendered string) error {
	_, _ = fmt.Fprintln(w, rendered)
	return fmt.Errorf("transition rejected")
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}
