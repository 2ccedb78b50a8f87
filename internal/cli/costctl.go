package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"costmanager/internal/backend"
	"costmanager/internal/config"
	"costmanager/internal/core"
	"costmanager/internal/log"
	"costmanager/internal/report"
	"costmanager/internal/services"
	"costmanager/internal/sheets"
	"costmanager/internal/sheets/google"
	"costmanager/internal/userdir"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// BackendOpener opens the storage costctl works on.
type BackendOpener func(ctx context.Context) (backend.Backend, func() error, error)

// ExporterOpener builds the spreadsheet exporter used by costctl export.
type ExporterOpener func(ctx context.Context) (sheets.ReportExporter, error)

// CtlApp is the costctl command-line application.
type CtlApp struct {
	rootCmd     *cobra.Command
	cfg         *config.Config
	logger      *log.Logger
	open        BackendOpener
	newExporter ExporterOpener
}

// NewCtlApp builds the command tree. A nil open uses the configured backend.
func NewCtlApp(cfg *config.Config, logger *log.Logger, open BackendOpener) *CtlApp {
	app := &CtlApp{
		cfg:    cfg,
		logger: logger,
		open:   open,
		newExporter: func(ctx context.Context) (sheets.ReportExporter, error) {
			return google.NewFromEnv(ctx)
		},
	}
	if app.open == nil {
		app.open = func(ctx context.Context) (backend.Backend, func() error, error) {
			res, err := OpenBackend(ctx, logger, cfg)
			if err != nil {
				return nil, nil, err
			}
			cleanup := res.Cleanup
			if cleanup == nil {
				cleanup = func() error { return nil }
			}
			return res.Backend, cleanup, nil
		}
	}

	rootCmd := &cobra.Command{
		Use:           "costctl",
		Short:         "Inspect and seed the cost manager stores",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("output", "o", "json", "Output format: json or yaml")

	rootCmd.AddCommand(app.reportCmd(), app.exportCmd(), app.addUserCmd(), app.addCostCmd(), app.logsCmd())
	app.rootCmd = rootCmd
	return app
}

// Execute runs the CLI application.
func (app *CtlApp) Execute(ctx context.Context) error {
	return app.rootCmd.ExecuteContext(ctx)
}

// SetArgs and SetOutput are used by tests.
func (app *CtlApp) SetArgs(args []string) { app.rootCmd.SetArgs(args) }

func (app *CtlApp) SetOutput(w io.Writer) {
	app.rootCmd.SetOut(w)
	app.rootCmd.SetErr(w)
}

func (app *CtlApp) reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the monthly cost report of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetInt64("user")
			year, _ := cmd.Flags().GetInt("year")
			month, _ := cmd.Flags().GetInt("month")

			return app.withBackend(cmd, func(ctx context.Context, b backend.Backend) error {
				engine, _, err := NewReportEngine(app.logger, app.cfg, b)
				if err != nil {
					return err
				}
				res, err := engine.GetMonthlyReport(ctx, userID, year, month)
				if err != nil {
					return err
				}
				return app.print(cmd, report.NewDocument(res.Report))
			})
		},
	}
	cmd.Flags().Int64("user", 0, "User id")
	cmd.Flags().Int("year", 0, "Report year")
	cmd.Flags().Int("month", 0, "Report month (1-12)")
	for _, f := range []string{"user", "year", "month"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func (app *CtlApp) exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Append the monthly report of a user to the Google spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetInt64("user")
			year, _ := cmd.Flags().GetInt("year")
			month, _ := cmd.Flags().GetInt("month")

			return app.withBackend(cmd, func(ctx context.Context, b backend.Backend) error {
				engine, _, err := NewReportEngine(app.logger, app.cfg, b)
				if err != nil {
					return err
				}
				res, err := engine.GetMonthlyReport(ctx, userID, year, month)
				if err != nil {
					return err
				}
				exporter, err := app.newExporter(ctx)
				if err != nil {
					return fmt.Errorf("open spreadsheet: %w", err)
				}
				ref, err := exporter.ExportReport(ctx, res.Report)
				if err != nil {
					return err
				}
				app.logger.InfoContext(ctx, "Report exported",
					append(log.NewFields().WithReportKey(userID, year, month).ToSlice(), "range", ref)...)
				return app.print(cmd, map[string]string{"range": ref})
			})
		},
	}
	cmd.Flags().Int64("user", 0, "User id")
	cmd.Flags().Int("year", 0, "Report year")
	cmd.Flags().Int("month", 0, "Report month (1-12)")
	for _, f := range []string{"user", "year", "month"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func (app *CtlApp) addUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Register a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetInt64("id")
			first, _ := cmd.Flags().GetString("first")
			last, _ := cmd.Flags().GetString("last")
			birthday, _ := cmd.Flags().GetString("birthday")

			bday, err := time.ParseInLocation("2006-01-02", birthday, time.UTC)
			if err != nil {
				return fmt.Errorf("%w: birthday must be YYYY-MM-DD", core.ErrInvalidRequest)
			}

			return app.withBackend(cmd, func(ctx context.Context, b backend.Backend) error {
				u, err := services.NewUserService(b, app.logger).AddUser(ctx, core.User{
					ID: id, FirstName: first, LastName: last, Birthday: bday,
				})
				if err != nil {
					return err
				}
				return app.print(cmd, u)
			})
		},
	}
	cmd.Flags().Int64("id", 0, "User id")
	cmd.Flags().String("first", "", "First name")
	cmd.Flags().String("last", "", "Last name")
	cmd.Flags().String("birthday", "", "Birthday (YYYY-MM-DD)")
	for _, f := range []string{"id", "first", "last", "birthday"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func (app *CtlApp) addCostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "addcost",
		Short: "Record a cost for an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetInt64("user")
			category, _ := cmd.Flags().GetString("category")
			description, _ := cmd.Flags().GetString("description")
			sum, _ := cmd.Flags().GetFloat64("sum")
			date, _ := cmd.Flags().GetString("date")

			c := core.Cost{
				Description: description,
				Category:    core.Category(strings.ToLower(category)),
				UserID:      userID,
				Sum:         sum,
			}
			if date != "" {
				loc, err := app.cfg.Location()
				if err != nil {
					return err
				}
				if c.CreatedAt, err = time.ParseInLocation("2006-01-02", date, loc); err != nil {
					return fmt.Errorf("%w: date must be YYYY-MM-DD", core.ErrInvalidRequest)
				}
			}

			return app.withBackend(cmd, func(ctx context.Context, b backend.Backend) error {
				saved, err := services.NewCostService(b, userdir.NewStore(b), app.logger).AddCost(ctx, c)
				if err != nil {
					return err
				}
				return app.print(cmd, saved)
			})
		},
	}
	cmd.Flags().Int64("user", 0, "User id")
	cmd.Flags().String("category", "", "One of food, health, housing, sports, education")
	cmd.Flags().String("description", "", "Description")
	cmd.Flags().Float64("sum", 0, "Amount")
	cmd.Flags().String("date", "", "Day of the cost (YYYY-MM-DD, default today)")
	for _, f := range []string{"user", "category", "description", "sum"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func (app *CtlApp) logsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logs",
		Short: "List stored request logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withBackend(cmd, func(ctx context.Context, b backend.Backend) error {
				logs, err := services.NewLogService(b).ListLogs(ctx)
				if err != nil {
					return err
				}
				return app.print(cmd, logs)
			})
		},
	}
}

func (app *CtlApp) withBackend(cmd *cobra.Command, fn func(ctx context.Context, b backend.Backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, cleanup, err := app.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(); err != nil {
			app.logger.Warn("Backend cleanup failed", log.FieldError, err.Error())
		}
	}()
	return fn(ctx, b)
}

func (app *CtlApp) print(cmd *cobra.Command, v any) error {
	format, _ := cmd.Flags().GetString("output")
	out := cmd.OutOrStdout()

	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q: must be json or yaml", format)
	}
}

// RunCtl is the whole main of costctl.
func RunCtl() {
	LoadEnvFile()
	cfg := config.Load()
	// stdout carries the command output
	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), Output: os.Stderr})
	log.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	ctx, cancel := SignalContext()
	defer cancel()

	if err := NewCtlApp(cfg, logger, nil).Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
