// Command nexactl is the operator tool for a Nexa deployment: it mints
// tokens, repairs role ledgers, reconciles seats and applies billing
// provider updates.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/juanse07/nexa-sub001/config"
	"github.com/juanse07/nexa-sub001/internal/app"
	applogger "github.com/juanse07/nexa-sub001/pkg/logger"
)

var (
	configPath string
	rootCtx    context.Context
)

var rootCmd = &cobra.Command{
	Use:           "nexactl",
	Short:         "Operate a Nexa deployment",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	rootCtx = ctx

	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("NEXA_CONFIG"), "path to the config file")

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and a logger for one command.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// withApp runs fn against a fully wired application and closes it afterwards.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := app.New(rootCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	return fn(rootCtx, a)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
