package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/mikey/email-housekeeper/internal/di"
	"github.com/mikey/email-housekeeper/internal/factory"
	"github.com/mikey/email-housekeeper/internal/ports"
)

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "email-housekeeper",
		Short:         "Classify, score and tidy mailboxes with memory-reinforced decisions",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Build the dependency injection container
			container, err := di.BuildContainer(configFile)
			if err != nil {
				return fmt.Errorf("failed to build dependency container: %w", err)
			}

			// Run the application
			return container.Invoke(run)
		},
	}
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file (default search paths when empty)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

type daemonDeps struct {
	dig.In

	Logger     *zap.Logger
	Frontends  []ports.Frontend
	Records    ports.RecordStore
	Memory     core.MemoryStore
	LLMFactory *factory.LLMFactory
}

// run is the main application function that gets all dependencies injected
func run(deps daemonDeps) error {
	logger := deps.Logger
	defer logger.Sync()

	// Start the frontends, unwinding the ones already running on failure
	started := make([]ports.Frontend, 0, len(deps.Frontends))
	for _, frontend := range deps.Frontends {
		if err := frontend.Start(); err != nil {
			logger.Error("Failed to start frontend", zap.String("frontend", frontend.Name()), zap.Error(err))
			stopFrontends(logger, started)
			closeResources(deps)
			return err
		}
		started = append(started, frontend)
	}

	logger.Info("Email housekeeper started", zap.Int("frontends", len(started)))

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("Shutting down...", zap.String("signal", sig.String()))

	stopFrontends(logger, started)
	closeResources(deps)

	logger.Info("Shutdown complete")
	return nil
}

// stopFrontends stops frontends in reverse start order
func stopFrontends(logger *zap.Logger, frontends []ports.Frontend) {
	for i := len(frontends) - 1; i >= 0; i-- {
		if err := frontends[i].Stop(); err != nil {
			logger.Error("Failed to stop frontend", zap.String("frontend", frontends[i].Name()), zap.Error(err))
		}
	}
}

func closeResources(deps daemonDeps) {
	deps.Records.Stop()

	if err := deps.LLMFactory.Close(); err != nil {
		deps.Logger.Error("Failed to close LLM clients", zap.Error(err))
	}

	// Close any memory store holding a connection
	if closer, ok := deps.Memory.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			deps.Logger.Error("Failed to close memory store", zap.Error(err))
		}
	}
}
