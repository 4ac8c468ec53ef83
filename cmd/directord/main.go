package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/directord/directord/pkg/cache"
	"github.com/directord/directord/pkg/components"
	"github.com/directord/directord/pkg/config"
	"github.com/directord/directord/pkg/coordinator"
	"github.com/directord/directord/pkg/docstore"
	"github.com/directord/directord/pkg/log"
	"github.com/directord/directord/pkg/metrics"
	"github.com/directord/directord/pkg/transport"
	"github.com/directord/directord/pkg/worker"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "directord",
	Short: "Directord - fingerprint-idempotent task dispatch fabric",
	Long: `Directord dispatches idempotent jobs to a fleet of worker agents over
three cooperating channels (job, backend, heartbeat), tracking each job's
lifecycle by the control byte its workers report back.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"directord version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to a coordinator/worker config file")
	rootCmd.PersistentFlags().String("socket", "/var/run/directord.sock", "Coordinator management socket")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(coordinatorCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(orchestrateCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(manageCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var coordinatorCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Run the Directord coordinator",
	Long:  `Start the coordinator: submission socket, job dispatch, result tracking and worker heartbeats.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		store, err := newDocstore(cfg)
		if err != nil {
			return err
		}

		driver, err := transport.NewGRPCDriver(cfg, "")
		if err != nil {
			return fmt.Errorf("creating transport driver: %w", err)
		}

		metrics.SetVersion(Version)
		co := coordinator.NewCoordinator(cfg, driver, store, log.WithComponent("coordinator"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := co.Start(ctx); err != nil {
			return fmt.Errorf("starting coordinator: %w", err)
		}

		collector := metrics.NewCollector(store)
		collector.Start()

		fmt.Printf("Coordinator running. Socket: %s\n", cfg.SocketPath)
		waitForSignal()

		collector.Stop()
		if err := co.Stop(); err != nil {
			return fmt.Errorf("stopping coordinator: %w", err)
		}
		_ = driver.Close()
		_ = store.Close()
		fmt.Println("Coordinator stopped")
		return nil
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a Directord worker agent",
	Long:  `Connect to a coordinator's job, backend and heartbeat channels and execute dispatched jobs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		identity, _ := cmd.Flags().GetString("identity")
		if identity == "" {
			identity, err = os.Hostname()
			if err != nil {
				return fmt.Errorf("resolving worker identity: %w", err)
			}
		}

		c, err := cache.NewBoltCache(cfg.CacheDir)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}

		driver, err := transport.NewGRPCDriver(cfg, identity)
		if err != nil {
			return fmt.Errorf("creating transport driver: %w", err)
		}

		w := worker.NewWorker(cfg, identity, driver, c, components.NewRegistry(), log.WithNodeID(identity))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("starting worker: %w", err)
		}

		fmt.Printf("Worker %s running against job channel %s\n", identity, cfg.JobBindAddr)
		waitForSignal()

		if err := w.Stop(); err != nil {
			return fmt.Errorf("stopping worker: %w", err)
		}
		_ = driver.Close()
		_ = c.Close()
		fmt.Println("Worker stopped")
		return nil
	},
}

func init() {
	workerCmd.Flags().String("identity", "", "Worker identity (defaults to hostname)")
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newDocstore(cfg *config.Config) (docstore.Store, error) {
	switch cfg.DocstoreBackend {
	case "redis":
		return docstore.NewRedisStore(cfg.RedisAddr, cfg.RedisDB)
	default:
		return docstore.NewMemoryStore(), nil
	}
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	fmt.Println("\nShutting down...")
}
