package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "monitor", "run-once":
		return runMonitor(args[1:])
	case "serve":
		return runServe(args[1:])
	case "plan":
		return runPlan(args[1:])
	case "stats":
		return runStats(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "portalerts CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  portalerts <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health    Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  monitor   Run one monitoring pass over due entities")
	fmt.Fprintln(os.Stderr, "  run-once  Alias for monitor")
	fmt.Fprintln(os.Stderr, "  serve     Start the API server with the cron trigger and bot webhook")
	fmt.Fprintln(os.Stderr, "  plan      Print the search queries for one entity")
	fmt.Fprintln(os.Stderr, "  stats     Print row counts and today's throughput")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"portalerts <command> -h\" for command-specific flags.")
}
