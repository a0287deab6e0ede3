package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/embedder"
	"github.com/kozaktomas/face-attendance/internal/engine"
	"github.com/kozaktomas/face-attendance/internal/snapshot"
	"github.com/kozaktomas/face-attendance/internal/web"
	"github.com/kozaktomas/face-attendance/internal/window"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance web server",
	Long: `Start the Face Attendance web server.
The server accepts camera frames, matches faces against the enrolled
roster, records arrivals and departures, and streams attendance events.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if !cmd.Flags().Changed("port") {
		port = cfg.Web.Port
	}
	if !cmd.Flags().Changed("host") {
		host = cfg.Web.Host
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	policy, err := window.NewPolicy(cfg.Windows.Morning, cfg.Windows.Afternoon)
	if err != nil {
		return fmt.Errorf("parsing attendance windows: %w", err)
	}

	eng := engine.New(engine.Config{
		Tolerance:         cfg.Match.Tolerance,
		IndexThreshold:    cfg.Match.IndexThreshold,
		Cooldown:          cfg.Throttle.Cooldown,
		Windows:           policy,
		ArrivalGreeting:   cfg.Greetings.Arrival,
		DepartureGreeting: cfg.Greetings.Departure,
		EmbeddingDim:      cfg.Embedder.Dim,
	}, store)

	if err := eng.WarmUp(ctx); err != nil {
		fmt.Printf("Warning: failed to warm up matcher index: %v\n", err)
		fmt.Println("Matching will load the roster per frame")
	} else {
		count, _ := store.Count(ctx)
		fmt.Printf("Matcher index warmed up with %d identities\n", count)
	}

	var embedderClient *embedder.Client
	if cfg.Embedder.URL != "" {
		embedderClient, err = embedder.New(cfg.Embedder.URL)
		if err != nil {
			return fmt.Errorf("configuring embedder client: %w", err)
		}
		fmt.Printf("Embedder service: %s\n", cfg.Embedder.URL)
	} else {
		fmt.Println("Embedder service not configured, raw frame uploads disabled")
	}

	saver, err := snapshot.NewSaver(cfg.Snapshot.Dir)
	if err != nil {
		return fmt.Errorf("preparing snapshot directories: %w", err)
	}

	port, host := resolveServeHostPort(cmd, cfg)
	server := web.NewServer(host, port, eng, store, embedderClient, saver)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Attendance server on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
