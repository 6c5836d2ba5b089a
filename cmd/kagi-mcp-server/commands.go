// ABOUTME: Inspection subcommands for kagi-mcp-server
// ABOUTME: tools lists the active registry, config prints the resolved config, usage reads the ledger, version prints the build

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/2389/kagi-mcp/internal/store"
	"github.com/2389/kagi-mcp/internal/tools"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", serverName, version)
		},
	}
}

func newToolsCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools this configuration exposes",
		Long: `List the tools the server would advertise in tools/list.

Disabled tools are omitted. Use --json to print the full MCP tool
descriptors, including input schemas.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			registry := tools.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
			// Listing never calls a handler, so no client is needed.
			if err := registry.RegisterPack(tools.KagiPack(nil, cfg)); err != nil {
				return fmt.Errorf("registering tools: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(registry.ListTools())
			}

			if len(registry.Names()) == 0 {
				fmt.Fprintln(out, "No tools enabled.")
				return nil
			}

			green := color.New(color.FgGreen)
			gray := color.New(color.FgHiBlack)
			for _, tool := range registry.Tools() {
				green.Fprint(out, "▶ ")
				fmt.Fprintln(out, tool.Definition.Name)
				gray.Fprintf(out, "    %s\n", tool.Definition.Description)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print MCP tool descriptors as JSON")
	return cmd
}

func newConfigCmd(flags *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Long: `Print the configuration after applying defaults, the config file,
environment variables and flags. The API key is masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			redacted := cfg.Redacted()

			out := cmd.OutOrStdout()
			switch format {
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(&redacted); err != nil {
					return fmt.Errorf("encoding config: %w", err)
				}
				if err := enc.Close(); err != nil {
					return fmt.Errorf("encoding config: %w", err)
				}
			case "toml":
				if err := toml.NewEncoder(out).Encode(&redacted); err != nil {
					return fmt.Errorf("encoding config: %w", err)
				}
			default:
				return fmt.Errorf("unknown format %q (want yaml or toml)", format)
			}

			if err := cfg.Validate(); err != nil {
				color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml or toml")
	return cmd
}

func newUsageCmd(flags *globalFlags) *cobra.Command {
	var (
		toolName string
		since    time.Duration
		recent   int
	)

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Summarize recorded tool calls",
		Long: `Summarize the usage ledger: calls, errors, cache hits and average
latency per tool, plus the most recent API balance Kagi reported.

Recording requires usage.enabled in the config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if _, err := os.Stat(cfg.Usage.Database); errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintf(out, "No usage recorded at %s (set usage.enabled to start recording).\n", cfg.Usage.Database)
				return nil
			}

			st, err := store.NewSQLiteStore(cfg.Usage.Database)
			if err != nil {
				return fmt.Errorf("opening usage database: %w", err)
			}
			defer st.Close()

			var filter store.UsageFilter
			if toolName != "" {
				filter.ToolName = &toolName
			}
			if since > 0 {
				from := time.Now().Add(-since)
				filter.Since = &from
			}

			stats, err := st.GetUsageStats(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("reading usage: %w", err)
			}
			printUsage(out, stats)

			if recent > 0 {
				calls, err := st.ListRecentCalls(cmd.Context(), recent)
				if err != nil {
					return fmt.Errorf("reading recent calls: %w", err)
				}
				printRecent(out, calls)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&toolName, "tool", "", "only include this tool")
	cmd.Flags().DurationVar(&since, "since", 0, "only include calls newer than this (e.g. 24h)")
	cmd.Flags().IntVar(&recent, "recent", 0, "also list the N most recent calls")
	return cmd
}

func printUsage(w io.Writer, stats *store.UsageStats) {
	if stats.TotalCalls == 0 {
		fmt.Fprintln(w, "No calls recorded.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TOOL\tCALLS\tERRORS\tCACHED\tAVG LATENCY")
	for _, t := range stats.Tools {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", t.ToolName, t.Calls, t.Errors, t.CacheHits, t.AvgDuration.Round(time.Millisecond))
	}
	fmt.Fprintf(tw, "total\t%d\t%d\t\t\n", stats.TotalCalls, stats.TotalErrors)
	_ = tw.Flush()

	if stats.LatestBalance != nil {
		fmt.Fprintln(w)
		color.New(color.FgGreen).Fprint(w, "API balance: ")
		fmt.Fprintf(w, "$%.2f (as of %s)\n", *stats.LatestBalance, stats.LatestBalanceAt.Local().Format(time.RFC3339))
	}
}

func printRecent(w io.Writer, calls []*store.CallRecord) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Recent calls:")

	red := color.New(color.FgRed)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range calls {
		status := c.Status
		if c.Cached {
			status += " (cached)"
		}
		if c.ErrorClass != "" {
			status = red.Sprintf("%s: %s", c.Status, c.ErrorClass)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			c.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			c.ToolName,
			status,
			c.Duration.Round(time.Millisecond),
		)
	}
	_ = tw.Flush()
}
