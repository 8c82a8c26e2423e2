package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"finreview/internal/config"
	"finreview/internal/llm"
	"finreview/internal/llm/providers"
	"finreview/internal/port"
	"finreview/internal/service"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "finreview",
	Short: "Financial-aid form review toolkit",
	Long:  "Runs the extraction, validation, mapping and standardization capabilities from the command line and inspects saved records.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// capabilities builds the stateless capability service. Without useLLM, or
// when no provider is configured, everything runs on rules.
func capabilities(useLLM bool) (service.CapabilityService, error) {
	var (
		completer port.Completer
		chain     []port.Completer
	)
	if useLLM {
		providers.Register()
		c, all, err := llm.BuildChain(&cfg.LLM)
		if err != nil {
			zap.L().Warn("language model unavailable, falling back to rules", zap.Error(err))
		} else {
			completer, chain = c, all
		}
	}
	pipeline, err := service.NewPipeline(cfg, completer, chain)
	if err != nil {
		return nil, err
	}
	return service.NewCapabilityService(pipeline), nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
