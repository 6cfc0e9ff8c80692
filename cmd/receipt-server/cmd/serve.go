package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/invoice-processor/internal/config"
	"github.com/rezonia/invoice-processor/internal/logging"
	"github.com/rezonia/invoice-processor/internal/server"
	"github.com/rezonia/invoice-processor/internal/wiring"
)

var (
	serverAddr   string
	serverDebug  bool
	readTimeout  time.Duration
	writeTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server for uploading receipts and working the review queue.

Examples:
  # Start server with defaults from the environment
  receipt-server serve

  # Start on a custom address in debug mode
  receipt-server serve --address :9090 --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", "", "Server listen address (overrides SERVER_ADDRESS)")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 0, "HTTP read timeout (overrides READ_TIMEOUT)")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 0, "HTTP write timeout (overrides WRITE_TIMEOUT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(cfg.LogLevel, serverDebug)

	if serverAddr != "" {
		cfg.ServerAddress = serverAddr
	}
	if readTimeout > 0 {
		cfg.ReadTimeout = readTimeout
	}
	if writeTimeout > 0 {
		cfg.WriteTimeout = writeTimeout
	}
	cfg.ServerDebug = cfg.ServerDebug || serverDebug

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	resources, err := wiring.Build(ctx, cfg)
	cancel()
	if err != nil {
		return fmt.Errorf("wire dependencies: %w", err)
	}
	defer resources.Close()

	srv := server.NewServer(&server.Config{
		Address:      cfg.ServerAddress,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Debug:        cfg.ServerDebug,
	}, resources.Receipts, resources.ReviewQueue, resources.Objects, resources.Tasks)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nShutting down server...")
		os.Exit(0)
	}()

	fmt.Printf("Starting receipt-server on %s\n", cfg.ServerAddress)
	return srv.Run()
}
