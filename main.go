package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sidereal-data/reduction.report/internal/pipeline"
	"github.com/sidereal-data/reduction.report/internal/version"
)

var (
	ledgerPath = flag.String("ledger", "reduction.db", "Path to the run-history database")
	verbose    = flag.Bool("verbose", false, "Enable trace logging")
)

func main() {
	flag.Usage = printHelp
	flag.Parse()

	var trace *os.File
	if *verbose {
		trace = os.Stderr
	}
	pipeline.SetLogWriters(os.Stderr, os.Stderr, trace)

	args := flag.Args()
	if len(args) < 1 {
		printHelp()
		os.Exit(1)
	}

	switch args[0] {
	case "run":
		runCommand(args[1:], *ledgerPath)
	case "resume":
		resumeCommand(args[1:], *ledgerPath)
	case "status":
		statusCommand(args[1:], *ledgerPath)
	case "export-cal":
		exportCalCommand(args[1:])
	case "migrate":
		migrateCommand(args[1:], *ledgerPath)
	case "version":
		fmt.Printf("reduction-report %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
	case "help":
		printHelp()
	default:
		log.Printf("unknown command %q", args[0])
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `Usage: reduction-report [flags] <command> [command flags]

Commands:
  run         Execute a recipe against a fresh working directory
  resume      Resume a checkpointed run and execute further stages
  status      Show run history from the ledger
  export-cal  Print a checkpoint's calibration instruction list
  migrate     Manage the ledger database schema (up|down|status|force)
  version     Print build information

Flags:
`)
	flag.PrintDefaults()
}
