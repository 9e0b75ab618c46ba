package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/edwardtay/webwatcher-sub002/internal/config"
	"github.com/edwardtay/webwatcher-sub002/internal/version"
)

var (
	cfgPath string
	cfg     = config.DefaultConfig()

	rootCmd = &cobra.Command{
		Use:   "webwatcher",
		Short: "URL risk assessment and phishing detection",
		Long: `WebWatcher - URL risk assessment pipeline for phishing detection.

Features: Structural URL analysis • Redirect tracing • Page & form inspection • TLS audit • Reputation, WHOIS, IP and breach intelligence

Install: go install github.com/edwardtay/webwatcher-sub002@latest`,
		PersistentPreRunE: loadConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path (default: ~/.webwatcher/config.yaml)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(versionCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

func loadConfig(cmd *cobra.Command, args []string) error {
	path := cfgPath
	if path == "" {
		path = config.DefaultPath()
	}
	loaded, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = loaded
	return nil
}

func printBanner() {
	red := color.New(color.FgRed, color.Bold)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)
	white := color.New(color.FgWhite, color.Bold)
	gray := color.New(color.FgHiBlack)

	red.Print(`
 _       __     __ _       __      __       __
| |     / /__  / /| |     / /___ _/ /______/ /_  ___  _____
| | /| / / _ \/ __ \ | /| / / __ '/ __/ ___/ __ \/ _ \/ ___/
| |/ |/ /  __/ /_/ / |/ |/ / /_/ / /_/ /__/ / / /  __/ /
|__/|__/\___/_.___/|__/|__/\__,_/\__/\___/_/ /_/\___/_/
`)
	fmt.Println()
	cyan.Print("  URL Risk Assessment Pipeline")
	gray.Printf("  v%s\n", version.Version)
	fmt.Println()
	yellow.Print("  [*] ")
	white.Println("Structural Analysis | Redirect Tracing | Page Inspection")
	yellow.Print("  [*] ")
	white.Println("TLS Audit | Reputation | WHOIS | IP Risk | Breach Intel")
	fmt.Println()
	gray.Println("  github.com/edwardtay/webwatcher-sub002")
	fmt.Println()
}
