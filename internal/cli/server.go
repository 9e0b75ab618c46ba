package cli

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/edwardtay/webwatcher-sub002/internal/incident"
	"github.com/edwardtay/webwatcher-sub002/internal/scan"
	"github.com/edwardtay/webwatcher-sub002/internal/server"
)

var (
	serverPort     int
	serverHost     string
	serverAPIKey   string
	serverAllowAll bool
	serverDebug    bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the risk assessment API server",
	Long: `Start the HTTP API server exposing the /security endpoints.

The server provides:
  - REST API for URL risk assessment and per-signal collection
  - Incident reports with analyst feedback
  - WebSocket for live scan events

Security features:
  - Rate limiting (100 requests/minute per IP)
  - CORS protection
  - Security headers (X-Frame-Options, CSP, etc.)
  - API key authentication
  - JWT authentication (sessions are in-memory; a restart invalidates them)

Examples:
  # Start with default settings (localhost:8788)
  webwatcher server

  # Start on custom port
  webwatcher server --port 9000

  # Allow external connections (use with caution!)
  webwatcher server --host 0.0.0.0

  # Use specific API key
  webwatcher server --api-key YOUR_SECRET_KEY`,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().IntVarP(&serverPort, "port", "p", 8788, "Server port")
	serverCmd.Flags().StringVarP(&serverHost, "host", "H", "127.0.0.1", "Server host (use 0.0.0.0 for all interfaces)")
	serverCmd.Flags().StringVar(&serverAPIKey, "api-key", "", "API key for authentication (generated when omitted)")
	serverCmd.Flags().BoolVar(&serverAllowAll, "allow-all-origins", false, "Allow all CORS origins (insecure, for development)")
	serverCmd.Flags().BoolVar(&serverDebug, "debug", false, "Verbose request logging")
}

func runServer(cmd *cobra.Command, args []string) error {
	cyan := color.New(color.FgCyan, color.Bold)
	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen)

	cyan.Println("\n┌─────────────────────────────────────────┐")
	cyan.Println("│          WEBWATCHER API SERVER          │")
	cyan.Println("└─────────────────────────────────────────┘")
	fmt.Println()

	apiKey := serverAPIKey
	if apiKey == "" {
		apiKey = server.GenerateAPIKey()
		green.Println("  Authentication Enabled (Required)")
		green.Println("  ────────────────────────────────────────")
		green.Printf("  Username: webwatcher\n")
		green.Printf("  API Key:  %s\n", apiKey)
		green.Println("  ────────────────────────────────────────")
		yellow.Println("  Save this key - it won't be shown again!")
		yellow.Println("  Use it in the X-API-Key header or ?api_key= param")
		fmt.Println()
	} else {
		cyan.Println("  Authentication Enabled with provided API key")
		cyan.Printf("  Username: webwatcher\n")
		fmt.Println()
	}

	if serverHost == "0.0.0.0" {
		yellow.Println("  WARNING: Server is accessible from all network interfaces!")
		yellow.Println("  Ensure you have proper firewall rules in place.")
		fmt.Println()
	}

	allowedOrigins := []string{
		fmt.Sprintf("http://localhost:%d", serverPort),
		fmt.Sprintf("http://127.0.0.1:%d", serverPort),
	}
	if serverAllowAll {
		yellow.Println("  CORS: All origins allowed (insecure)")
		allowedOrigins = []string{"*"}
	}

	store, err := incident.NewStore(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open incident store: %w", err)
	}
	defer store.Close()

	pipeline := scan.New(cfg, store)

	// Outcome sink feeds the offline learning loop
	sink := scan.NewSink(filepath.Dir(cfg.DatabasePath))
	defer sink.Close()
	pipeline.SetSink(sink)

	srv := server.New(&server.Config{
		Port:           serverPort,
		Host:           serverHost,
		APIKey:         apiKey,
		AllowedOrigins: allowedOrigins,
		Debug:          serverDebug,
		ScanConfig:     cfg,
	}, pipeline)

	return srv.StartWithGracefulShutdown()
}
