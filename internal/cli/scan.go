package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/edwardtay/webwatcher-sub002/internal/collect"
	"github.com/edwardtay/webwatcher-sub002/internal/incident"
	"github.com/edwardtay/webwatcher-sub002/internal/risk"
	"github.com/edwardtay/webwatcher-sub002/internal/scan"
)

var (
	scanEmail   string
	scanQuick   bool
	scanJSON    bool
	scanPersist bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [url]",
	Short: "Assess the phishing risk of a URL",
	Long: `Run the risk assessment pipeline against a single URL.

All signal collectors run concurrently: structural analysis, redirect
tracing, page inspection, TLS audit, reputation lookups, WHOIS, and IP
risk profiling. Sources that fail or time out are reported as
unavailable and the score is renormalized over the rest.

Examples:
  webwatcher scan https://example.com
  webwatcher scan paypal-login.tk --email user@example.com
  webwatcher scan https://example.com --quick
  webwatcher scan https://example.com --json`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanEmail, "email", "", "Also check this email against breach databases")
	scanCmd.Flags().BoolVar(&scanQuick, "quick", false, "URL-only structural analysis, no network calls")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print the full outcome as JSON")
	scanCmd.Flags().BoolVar(&scanPersist, "save", false, "Persist an incident report for this scan")
}

func runScan(cmd *cobra.Command, args []string) error {
	if !scanJSON {
		printBanner()
	}

	store, err := incident.NewStore(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open incident store: %w", err)
	}
	defer store.Close()

	pipeline := scan.New(cfg, store)

	var out *scan.Outcome
	if scanQuick {
		out, err = pipeline.QuickScan(args[0])
	} else {
		out, err = pipeline.Scan(context.Background(), args[0], scan.Options{
			Email:   scanEmail,
			Persist: scanPersist,
		})
	}
	if err != nil {
		return err
	}

	if scanJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	printOutcome(out)
	return nil
}

func printOutcome(out *scan.Outcome) {
	cyan := color.New(color.FgCyan, color.Bold)
	gray := color.New(color.FgHiBlack)

	cyan.Printf("[*] Target: %s\n", out.URL)
	if out.Features.BrandImpersonation != "" {
		color.Yellow("    Possible brand impersonation: %s", out.Features.BrandImpersonation)
	}
	fmt.Println()

	for _, r := range out.Results {
		printResult(r)
	}

	fmt.Println()
	verdictColor(out.Assessment.Verdict).Printf("[!] Verdict: %s", out.Assessment.Verdict)
	fmt.Printf("  (score %d/100, category %s)\n", out.Assessment.OverallScore, out.Category)

	if !out.PolicyCompliant {
		color.Red("[!] Policy: BLOCKED for this category and risk band")
	} else {
		color.Green("[+] Policy: allowed")
	}

	if len(out.Assessment.RedFlags) > 0 {
		fmt.Println()
		color.Yellow("    Red flags:")
		for _, f := range out.Assessment.RedFlags {
			fmt.Printf("      - %s\n", f)
		}
	}

	if out.Report != nil {
		fmt.Println()
		gray.Printf("    Incident saved: %s (SIEM-ready: %v)\n", out.Report.ID, out.Report.SIEMReady)
	}
	gray.Printf("    Completed in %s\n", out.Duration.Round(time.Millisecond))
}

func printResult(r collect.Result) {
	name := fmt.Sprintf("%-14s", r.Source)
	if !r.IsAvailable() {
		color.New(color.FgHiBlack).Printf("    [-] %s unavailable  %s\n", name, r.Reason)
		return
	}

	icon := color.GreenString("[+]")
	if r.Score >= 60 {
		icon = color.RedString("[!]")
	} else if r.Score >= 30 {
		icon = color.YellowString("[~]")
	}
	fmt.Printf("    %s %s score %-3d", icon, name, r.Score)
	if len(r.RedFlags) > 0 {
		fmt.Printf("  %s", strings.Join(r.RedFlags, "; "))
	}
	fmt.Println()
}

func verdictColor(v risk.Verdict) *color.Color {
	switch v {
	case risk.VerdictLikelyPhishing:
		return color.New(color.FgRed, color.Bold)
	case risk.VerdictSuspicious:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgGreen, color.Bold)
	}
}
