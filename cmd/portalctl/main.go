// Command portalctl queries the camera portal views from a terminal.
// It talks to the camera management backend directly, without the portal server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/vzahanych/view-guard-meta/portal/internal/aggregate"
	"github.com/vzahanych/view-guard-meta/portal/internal/backend"
	"github.com/vzahanych/view-guard-meta/portal/internal/config"
	"github.com/vzahanych/view-guard-meta/portal/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// options are the persistent flags shared by every command
type options struct {
	configPath string
	backendURL string
	timeout    time.Duration
	jsonOutput bool
	verbose    bool
}

// portal is what a command needs to run: the aggregator for views and the client for commands
type portal struct {
	client *backend.Client
	views  *aggregate.Aggregator
	log    *logger.Logger
}

// newPortal resolves configuration and builds the backend client and aggregator.
// The caller must call close when done.
func (o *options) newPortal() (*portal, error) {
	cfg, err := config.ResolveOptional(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if o.backendURL != "" {
		cfg.Backend.BaseURL = o.backendURL
	}
	if o.timeout > 0 {
		cfg.Backend.Timeout = o.timeout
	}

	level := "warn"
	if o.verbose {
		level = "debug"
	}
	log, err := logger.New(logger.LogConfig{Level: level, Format: "text", Output: "stderr"})
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	client := backend.NewClient(backend.Config{
		BaseURL:         cfg.Backend.BaseURL,
		PrivateBaseURL:  cfg.Backend.PrivateBaseURL,
		PrivateUsername: cfg.Backend.PrivateUsername,
		PrivatePassword: cfg.Backend.PrivatePassword,
		Timeout:         cfg.Backend.Timeout,
		UserAgent:       "portalctl",
	}, log)

	return &portal{
		client: client,
		views: aggregate.New(client, aggregate.Options{
			MaxConcurrency: cfg.Aggregate.MaxConcurrency,
			PTZStep:        cfg.PTZ.Step,
		}, log),
		log: log,
	}, nil
}

func (p *portal) close() {
	p.log.Sync()
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "portalctl",
		Short:         "Inspect and control cameras through the portal views",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	flags.StringVar(&opts.backendURL, "backend-url", "", "Backend base URL (overrides configuration)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Backend request timeout")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Print raw JSON instead of tables")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log backend requests")

	rootCmd.AddCommand(
		camerasCmd(opts),
		cameraCmd(opts),
		updatesCmd(opts),
		transcodersCmd(opts),
		peopleCmd(opts),
		personCmd(opts),
		historyCmd(opts),
		eventsCmd(opts),
		groupsCmd(opts),
		ptzCmd(opts),
		streamCmd(opts),
		healthcheckCmd(opts),
	)
	return rootCmd
}
