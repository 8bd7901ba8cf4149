package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"hemo-board/internal/board"
	"hemo-board/internal/config"
	"hemo-board/internal/format"
	"hemo-board/internal/identity"
	"hemo-board/internal/logger"
	"hemo-board/internal/metrics"
	"hemo-board/internal/store"
)

type App struct {
	ConfigPath string
	User       string
	Backend    string
	DBPath     string
	PrettyJSON bool
	Format     string

	cfg *config.Config
	now func() time.Time
	// quiet silences logging while the terminal board owns the screen.
	quiet bool
}

func NewRootCmd() *cobra.Command {
	app := &App{now: time.Now}

	cmd := &cobra.Command{
		Use:          "hemoboard",
		Short:        "Weekly procedure board for the cath lab",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Interactive board for the current week
  hemoboard --user ana@hosp.es

  # Scriptable commands
  hemoboard board --week 2025-03-03
  hemoboard cards add --name "Cama 12" --proc ICP --day 2025-03-03 --row "Sala 1"
  hemoboard cards up <card-id>

  # Serve the HTTP API with live updates
  hemoboard serve --addr :8080
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive board.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app, "")
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.loadConfig()
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("HEMO_CONFIG", ""), "Config file (yaml or json)")
	cmd.PersistentFlags().StringVar(&app.User, "user", "", "Signed-in user id or email (overrides config user)")
	cmd.PersistentFlags().StringVar(&app.Backend, "store", "", "Store backend (sqlite|memory; overrides config)")
	cmd.PersistentFlags().StringVar(&app.DBPath, "db", "", "SQLite database path (overrides config)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("HEMO_FORMAT", "json"), "Output format (json|text)")

	cmd.AddCommand(newBoardCmd(app))
	cmd.AddCommand(newCardsCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newProfilesCmd(app))
	cmd.AddCommand(newWhoamiCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newWatchCmd(app))
	cmd.AddCommand(newTUICmd(app))
	cmd.AddCommand(newMigrateCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

func (app *App) loadConfig() error {
	cfg, err := config.Load(app.ConfigPath)
	if err != nil {
		return err
	}
	if v := strings.TrimSpace(app.User); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(app.Backend); v != "" {
		cfg.Store.Backend = v
	}
	if v := strings.TrimSpace(app.DBPath); v != "" {
		cfg.Store.Path = v
	}
	if err := cfg.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	logger.SetLevel(cfg.Log.Level)
	app.cfg = cfg
	return nil
}

// openStore opens the configured backend. The caller closes it.
func (app *App) openStore(ctx context.Context) (store.Backend, error) {
	return store.Open(ctx, app.cfg.Store, app.logger("store"))
}

func (app *App) service(s board.Store, sink metrics.Sink) *board.Service {
	return board.NewService(s, board.Options{
		Increment:  app.cfg.Board.Increment,
		ParkOffset: app.cfg.Board.ParkOffset,
		Logger:     app.logger("board"),
		Metrics:    sink,
	})
}

func (app *App) session(p store.Profiles) *identity.Session {
	return identity.NewSession(p, app.cfg.User)
}

func (app *App) actor(ctx context.Context, p store.Profiles) (board.Actor, error) {
	u, role, err := identity.Resolve(ctx, app.session(p))
	if err != nil {
		return board.Actor{}, err
	}
	return board.Actor{User: u, Role: role}, nil
}

func (app *App) week(s string) (time.Time, error) {
	return board.ParseWeek(strings.TrimSpace(s), app.now())
}

func (app *App) logger(component string) logger.Logger {
	if app.quiet {
		return logger.Nop{}
	}
	return logger.New(component)
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
