// Package cli implements the planctl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/zatekoja/itineraryconcierge/internal/bootstrap"
	"github.com/zatekoja/itineraryconcierge/pkg/config"
)

var (
	backendFlag string
	configFlag  string
)

// openEngine builds the engine for a command. Tests replace it.
var openEngine = func(ctx context.Context) (*bootstrap.Engine, error) {
	if configFlag != "" {
		if err := os.Setenv(config.ConfigFileEnv, configFlag); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if backendFlag != "" {
		cfg.Engine.StoreBackend = backendFlag
	}
	return bootstrap.New(ctx, cfg, bootstrap.Options{})
}

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "planctl",
	Short:         "Inspect and repair stored travel plans",
	Long:          "planctl reads, seeds and migrates travel plans in the plan store, and can run a chat turn against a plan.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: $"+config.ConfigFileEnv+")")
	RootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Store backend override: redis or memory (default: $PLAN_STORE_BACKEND)")
}

// Execute runs the root command.
func Execute() error {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func withEngine(cmd *cobra.Command, fn func(e *bootstrap.Engine) error) error {
	engine, err := openEngine(cmd.Context())
	if err != nil {
		return fmt.Errorf("open plan engine: %w", err)
	}
	defer engine.Close()
	return fn(engine)
}

func printJSON(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func readSource(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
