// cmd/ucapctl/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ucap-workers/internal/app"
	"ucap-workers/internal/common/config"
	"ucap-workers/internal/common/logger"
	"ucap-workers/internal/models"
	"ucap-workers/internal/orchestrator"
)

var (
	configPath     string
	logLevel       string
	systems        []string
	timeoutMs      int
	filterJSON     string
	defaultFilters string

	rootCmd = &cobra.Command{
		Use:           "ucapctl",
		Short:         "Run unified cross-system queries from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	queryCmd = &cobra.Command{
		Use:   "query",
		Short: "Query ERP, HR and FIN with a structured filter",
		Args:  cobra.NoArgs,
		RunE:  runQuery,
	}

	nlQueryCmd = &cobra.Command{
		Use:   "nl-query [text]",
		Short: "Query with a natural-language request",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runNLQuery,
	}

	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Manage the normalized bundle cache",
	}

	cacheInvalidateCmd = &cobra.Command{
		Use:   "invalidate [system...]",
		Short: "Drop cached bundles (all systems when none are given)",
		RunE:  runCacheInvalidate,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config.yaml (default: ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level written to stderr")

	for _, cmd := range []*cobra.Command{queryCmd, nlQueryCmd} {
		cmd.Flags().StringSliceVar(&systems, "systems", nil, "systems to query (erp,hr,fin)")
		cmd.Flags().IntVar(&timeoutMs, "timeout-ms", 0, "per-query deadline in milliseconds")
	}
	queryCmd.Flags().StringVar(&filterJSON, "filter", "", `filter params as JSON, e.g. '{"entity_type":"transactions","limit":20}'`)
	nlQueryCmd.Flags().StringVar(&defaultFilters, "default-filters", "", "default filter params as JSON")

	cacheCmd.AddCommand(cacheInvalidateCmd)
	rootCmd.AddCommand(queryCmd, nlQueryCmd, cacheCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadStack(ctx context.Context) (*app.App, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	log := logger.NewZapAdapter(logger.NewWithOutput(logLevel, "console", "stderr"))
	return app.Build(ctx, cfg, nil, log)
}

func runQuery(cmd *cobra.Command, args []string) error {
	filter, err := parseFilter(filterJSON)
	if err != nil {
		return fmt.Errorf("--filter: %w", err)
	}

	stack, err := loadStack(cmd.Context())
	if err != nil {
		return err
	}
	defer stack.Close()

	result := stack.Service.QueryAcrossSystems(cmd.Context(), orchestrator.QueryRequest{
		Filter:    filter,
		Systems:   systems,
		TimeoutMs: optionalInt(timeoutMs),
	})
	return printResult(cmd.OutOrStdout(), result)
}

func runNLQuery(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return fmt.Errorf("text must not be empty")
	}
	defaults, err := parseFilter(defaultFilters)
	if err != nil {
		return fmt.Errorf("--default-filters: %w", err)
	}

	stack, err := loadStack(cmd.Context())
	if err != nil {
		return err
	}
	defer stack.Close()

	result := stack.Service.NLQuery(cmd.Context(), orchestrator.NLRequest{
		Text:           text,
		DefaultFilters: defaults,
		Systems:        systems,
		TimeoutMs:      optionalInt(timeoutMs),
	})
	return printResult(cmd.OutOrStdout(), result)
}

func runCacheInvalidate(cmd *cobra.Command, args []string) error {
	targets, err := parseSystems(args)
	if err != nil {
		return err
	}

	stack, err := loadStack(cmd.Context())
	if err != nil {
		return err
	}
	defer stack.Close()

	if err := stack.Cache.Invalidate(cmd.Context(), targets...); err != nil {
		return fmt.Errorf("invalidate cache: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "invalidated %d system(s)\n", len(targets))
	return nil
}

func parseSystems(args []string) ([]models.SystemType, error) {
	if len(args) == 0 {
		return append([]models.SystemType(nil), models.AllSystems...), nil
	}
	out := make([]models.SystemType, 0, len(args))
	for _, a := range args {
		s, ok := models.ParseSystem(a)
		if !ok {
			return nil, fmt.Errorf("unknown system %q", a)
		}
		out = append(out, s)
	}
	return out, nil
}

func parseFilter(raw string) (map[string]interface{}, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func optionalInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func printResult(w io.Writer, result *models.UnifiedResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
