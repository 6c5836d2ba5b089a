// ABOUTME: Entry point for kagi-mcp-server
// ABOUTME: Serves the Kagi tools over MCP stdio and provides tools, config, usage and version subcommands

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389/kagi-mcp/internal/cache"
	"github.com/2389/kagi-mcp/internal/config"
	"github.com/2389/kagi-mcp/internal/kagi"
	"github.com/2389/kagi-mcp/internal/mcp"
	"github.com/2389/kagi-mcp/internal/store"
	"github.com/2389/kagi-mcp/internal/telemetry"
	"github.com/2389/kagi-mcp/internal/tools"
)

// Version is set by goreleaser at build time.
var version = "dev"

const serverName = "kagi-mcp-server"

const instructions = "Kagi tools: kagi_search_fetch for web results, kagi_summarizer for URLs or text, " +
	"kagi_fastgpt for direct answers with references, kagi_enrich_web and kagi_enrich_news for small-web and non-mainstream news sources."

// globalFlags are shared by every command.
type globalFlags struct {
	configPath       string
	apiKey           string
	summarizerEngine string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   serverName,
		Short: "MCP server for the Kagi search, summarizer, FastGPT and enrichment APIs",
		Long: `Serve Kagi tools to an MCP host over stdio.

The server speaks newline-delimited JSON-RPC on stdin and stdout. Logs go to
stderr. The API key comes from KAGI_API_KEY, the config file or --api-key.

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "kagi": {
        "command": "/path/to/kagi-mcp-server",
        "env": { "KAGI_API_KEY": "..." }
      }
    }
  }`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to a YAML or TOML config file (default $"+config.EnvConfigPath+")")
	pf.StringVar(&flags.apiKey, "api-key", "", "Kagi API key (overrides KAGI_API_KEY)")
	pf.StringVar(&flags.summarizerEngine, "summarizer-engine", "", "default summarizer engine: cecil, agnes, daphne or muriel")

	root.AddCommand(
		newToolsCmd(flags),
		newConfigCmd(flags),
		newUsageCmd(flags),
		newVersionCmd(),
	)
	return root
}

// loadConfig resolves defaults, file, environment and flags in that order.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if flags.apiKey != "" {
		cfg.Kagi.APIKey = flags.apiKey
	}
	if flags.summarizerEngine != "" {
		cfg.Kagi.SummarizerEngine = strings.ToLower(strings.TrimSpace(flags.summarizerEngine))
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, flags *globalFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg.Logging, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	ctx := cmd.Context()

	if _, fellBack := cfg.ResolveEngine(); fellBack {
		logger.Warn("unknown summarizer engine, using default",
			"engine", cfg.Kagi.SummarizerEngine,
			"default", kagi.DefaultEngine,
		)
	}

	clientOpts := cfg.ClientOptions()
	clientOpts.UserAgent = serverName + "/" + version
	clientOpts.Logger = logger
	client, err := kagi.NewClient(clientOpts)
	if err != nil {
		return fmt.Errorf("creating kagi client: %w", err)
	}

	registry := tools.NewRegistry(logger)
	if err := registry.RegisterPack(tools.KagiPack(client, cfg)); err != nil {
		return fmt.Errorf("registering tools: %w", err)
	}

	dispatcherCfg := tools.DispatcherConfig{
		Registry: registry,
		Logger:   logger,
		Secret:   cfg.Kagi.APIKey,
	}

	if cfg.Cache.Enabled {
		c := cache.New(cfg.Cache.TTL, cfg.Cache.MaxEntries)
		defer c.Close()
		dispatcherCfg.Cache = c
	}

	if cfg.Usage.Enabled {
		st, err := store.NewSQLiteStore(cfg.Usage.Database)
		if err != nil {
			return fmt.Errorf("opening usage database: %w", err)
		}
		defer st.Close()
		dispatcherCfg.Recorder = st
	}

	var handler mcp.ToolHandler = tools.NewDispatcher(dispatcherCfg)

	if cfg.Telemetry.Enabled {
		inst, shutdown, err := telemetry.Init(ctx, cfg.Telemetry.ServiceName, version)
		if err != nil {
			logger.Warn("telemetry disabled", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					logger.Warn("telemetry shutdown failed", "error", err)
				}
			}()
			handler = telemetry.WrapHandler(handler, inst)
		}
	}

	server, err := mcp.NewServer(mcp.Config{
		Handler:      handler,
		Logger:       logger,
		Name:         serverName,
		Version:      version,
		Instructions: instructions,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	logger.Info("starting kagi-mcp-server",
		"version", version,
		"tools", registry.Names(),
		"cache", cfg.Cache.Enabled,
		"usage", cfg.Usage.Enabled,
		"telemetry", cfg.Telemetry.Enabled,
	)

	if err := server.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("serving: %w", err)
	}

	logger.Info("kagi-mcp-server stopped")
	return nil
}
