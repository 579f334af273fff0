package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"evsync/backend/libs/logging"
	"evsync/backend/services/sync-agent/internal/app"
	"evsync/backend/services/sync-agent/internal/clients"
	"evsync/backend/services/sync-agent/internal/config"
	"evsync/backend/services/sync-agent/internal/identity"
	"evsync/backend/services/sync-agent/internal/models"
	"evsync/backend/services/sync-agent/internal/repository"
	"evsync/backend/services/sync-agent/internal/translator"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "sync-agent",
		Short:         "Offline-first EV charging booking agent",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (default $SYNC_AGENT_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug|info|warn|error)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newStationsCommand(opts))
	cmd.AddCommand(newBookingsCommand(opts))
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local agent until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, logger, err := bootstrap(opts, "")
			if err != nil {
				return report(cmd.ErrOrStderr(), err)
			}
			defer logger.Sync()

			application, err := app.New(ctx, cfg, logger, version)
			if err != nil {
				logger.Error("failed to init sync agent", zap.Error(err))
				return err
			}
			defer application.Close()

			if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("sync agent stopped with error", zap.Error(err))
				return err
			}
			return nil
		},
	}
}

func newStationsCommand(opts *rootOptions) *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "stations",
		Short: "List charging stations once and print JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return oneShot(cmd, opts, "", func(ctx context.Context, a *app.App) (interface{}, error) {
				return a.Stations.List(ctx, repository.StationQuery{Search: search})
			})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "free-text station filter")
	return cmd
}

func newBookingsCommand(opts *rootOptions) *cobra.Command {
	var view, token string
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "List the signed-in owner's bookings once and print JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return oneShot(cmd, opts, token, func(ctx context.Context, a *app.App) (interface{}, error) {
				switch view {
				case "", "all":
					return a.Reservations.ListMine(ctx)
				case "upcoming":
					return a.Reservations.Upcoming(ctx)
				case "past":
					return a.Reservations.Past(ctx)
				default:
					return nil, fmt.Errorf("invalid view %q: must be all, upcoming or past", view)
				}
			})
		},
	}
	cmd.Flags().StringVar(&view, "view", "all", "all|upcoming|past")
	cmd.Flags().StringVar(&token, "token", "", "caller bearer token (default: last signed-in user)")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agent version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}

// output is the JSON printed by one-shot reads.
type output struct {
	Source  repository.Source   `json:"source"`
	Stale   bool                `json:"stale"`
	Warning *translator.Message `json:"warning,omitempty"`
	Items   interface{}         `json:"items"`
}

func toOutput(result interface{}) interface{} {
	switch l := result.(type) {
	case repository.Listing[models.Station]:
		return output{Source: l.Source, Stale: l.Stale(), Warning: describe(l.Cause), Items: l.Items}
	case repository.Listing[models.Reservation]:
		return output{Source: l.Source, Stale: l.Stale(), Warning: describe(l.Cause), Items: l.Items}
	default:
		return result
	}
}

func describe(err error) *translator.Message {
	if err == nil {
		return nil
	}
	msg := translator.Describe(err)
	return &msg
}

func oneShot(cmd *cobra.Command, opts *rootOptions, token string, read func(context.Context, *app.App) (interface{}, error)) error {
	cfg, logger, err := bootstrap(opts, logging.EncodingConsole)
	if err != nil {
		return report(cmd.ErrOrStderr(), err)
	}
	defer logger.Sync()

	ctx := cmd.Context()
	application, err := app.New(ctx, cfg, logger, version)
	if err != nil {
		return report(cmd.ErrOrStderr(), err)
	}
	defer application.Close()

	ctx, err = withCaller(ctx, cfg, application, token)
	if err != nil {
		return report(cmd.ErrOrStderr(), err)
	}
	result, err := read(ctx, application)
	if err != nil {
		return report(cmd.ErrOrStderr(), err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(toOutput(result))
}

// withCaller attaches the token's identity, or offline the last user seen by the agent.
func withCaller(ctx context.Context, cfg *config.Config, a *app.App, token string) (context.Context, error) {
	if token != "" {
		id, err := identity.FromToken(token, cfg.JWT.Secret)
		if err != nil {
			return ctx, err
		}
		if _, err := a.Users.Remember(ctx, id); err != nil {
			return ctx, err
		}
		return clients.WithBearerToken(identity.WithIdentity(ctx, id), token), nil
	}
	last, err := a.Users.Last(ctx)
	if err != nil {
		// Anonymous reads still work; owner-scoped ones report the missing identity.
		return ctx, nil
	}
	return identity.WithIdentity(ctx, repository.AsIdentity(last)), nil
}

func bootstrap(opts *rootOptions, encoding string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	level := opts.logLevel
	if level == "" {
		level = cfg.Log.Level
	}
	if encoding == "" {
		encoding = cfg.Log.Encoding
	}
	logger, err := logging.NewLogger(level, encoding)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func report(w io.Writer, err error) error {
	fmt.Fprintln(w, "error:", translator.Describe(err).String())
	return err
}
