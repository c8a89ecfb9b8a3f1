package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/strrl/activator/internal/ai"
	"github.com/strrl/activator/internal/config"
	"github.com/strrl/activator/internal/history"
	"github.com/strrl/activator/internal/logging"
	"github.com/strrl/activator/internal/scheduler"
)

var (
	runConfigPath    string
	runInterval      float64
	runTokens        int
	runURL           string
	runAPIKey        string
	runModel         string
	runInterfaceType string
	runSchedule      string
	runLogLevel      string
	runHistoryDB     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start sending activation requests",
	Long: `Send one activation request immediately, then one per interval until
interrupted. Settings come from --config, the environment (ACTIVATOR_API_KEY,
ACTIVATOR_URL, ACTIVATOR_MODEL, also read from .env) and flags, with flags
taking precedence.`,
	Example: `  activator run -u https://api.openai.com/v1 -k sk-xxx -m gpt-4o-mini
  activator run -c config.yaml -i 5
  activator run -I anthropic -u https://api.anthropic.com/v1 -m claude-3-haiku-20240307 --schedule "0 */5 * * *"`,
	RunE: runActivator,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "Path to a YAML config file")
	runCmd.Flags().Float64VarP(&runInterval, "interval", "i", config.DefaultInterval, "Hours between activations")
	runCmd.Flags().IntVarP(&runTokens, "tokens", "t", config.DefaultTokens, "Approximate size of each activation request in tokens")
	runCmd.Flags().StringVarP(&runURL, "url", "u", "", "API base URL or full endpoint")
	runCmd.Flags().StringVarP(&runAPIKey, "apikey", "k", "", "API key")
	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "Model name")
	runCmd.Flags().StringVarP(&runInterfaceType, "interface-type", "I", string(ai.KindOpenAI), "API interface type (openai or anthropic)")
	runCmd.Flags().StringVar(&runSchedule, "schedule", "", "Cron expression used instead of --interval")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&runHistoryDB, "history-db", "", "DuckDB file that records every activation")
}

func runActivator(cmd *cobra.Command, args []string) error {
	registry := ai.DefaultRegistry()

	cfg, err := loadRunConfig(cmd, registry)
	if err != nil {
		return err
	}

	logger, logCloser, err := logging.Setup(logging.FromConfig(cfg.Logging))
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	client, err := registry.New(ai.Kind(cfg.API.InterfaceType), ai.Config{
		Endpoint: cfg.API.URL,
		APIKey:   cfg.API.APIKey,
		Model:    cfg.API.Model,
	})
	if err != nil {
		return fmt.Errorf("failed to create api client: %w", err)
	}
	logging.LogNormalized(logger, cfg.API.URL, client.Endpoint())

	schedule, err := cfg.Schedule()
	if err != nil {
		client.Close()
		return err
	}

	reporters := []scheduler.Reporter{logging.NewReporter(logger)}
	if cfg.History.Path != "" {
		store, err := history.Open(cmd.Context(), cfg.History.Path)
		if err != nil {
			client.Close()
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer store.Close()
		reporters = append(reporters, history.NewReporter(store, string(client.Kind()), cfg.API.Model, logger))
	}

	s, err := scheduler.New(client, scheduler.Config{
		Tokens:   cfg.Activator.Tokens,
		Schedule: schedule,
	},
		scheduler.WithReporter(scheduler.Reporters(reporters...)),
		scheduler.WithLogger(logger),
	)
	if err != nil {
		client.Close()
		return err
	}

	logging.LogBanner(logger, logging.Banner{
		InterfaceType: string(client.Kind()),
		Endpoint:      client.Endpoint(),
		Model:         cfg.API.Model,
		Cadence:       cfg.Describe(),
		Tokens:        cfg.Activator.Tokens,
		HistoryPath:   cfg.History.Path,
	})

	return runUntilSignal(cmd.Context(), s, logger)
}

func runUntilSignal(parent context.Context, s *scheduler.Scheduler, logger *slog.Logger) error {
	shutdown := scheduler.NewShutdown(parent, logger)
	defer shutdown.Stop()

	if err := s.Run(shutdown.Context()); err != nil {
		return err
	}
	logger.Info("activator stopped", "cycles", s.State().Cycles)
	return nil
}

func loadRunConfig(cmd *cobra.Command, registry *ai.Registry) (*config.Config, error) {
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Apply(runOverrides(cmd))
	if err := cfg.Validate(registry); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runOverrides keeps only the flags the user actually passed, so flag defaults
// never shadow values from the file or the environment.
func runOverrides(cmd *cobra.Command) config.Overrides {
	flags := cmd.Flags()
	var o config.Overrides
	if flags.Changed("interval") {
		o.Interval = &runInterval
	}
	if flags.Changed("tokens") {
		o.Tokens = &runTokens
	}
	if flags.Changed("schedule") {
		o.Schedule = &runSchedule
	}
	if flags.Changed("url") {
		o.URL = &runURL
	}
	if flags.Changed("apikey") {
		o.APIKey = &runAPIKey
	}
	if flags.Changed("model") {
		o.Model = &runModel
	}
	if flags.Changed("interface-type") {
		o.InterfaceType = &runInterfaceType
	}
	if flags.Changed("log-level") {
		o.LogLevel = &runLogLevel
	}
	if flags.Changed("history-db") {
		o.HistoryPath = &runHistoryDB
	}
	return o
}
