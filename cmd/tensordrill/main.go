package main

import (
	"fmt"
	"os"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "verify":
		err = cmdVerify(args)
	case "verify-all":
		err = cmdVerifyAll(args)
	case "flag":
		err = cmdFlag(args)
	case "status":
		err = cmdStatus(args)
	case "queue":
		err = cmdQueue(args)
	case "mcp":
		err = cmdMCP(args)
	case "version":
		fmt.Printf("tensordrill %s\n", Version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tensordrill - quality gate for tensor-programming practice cards

Usage:
  tensordrill <command> [arguments]

Commands:
  verify <problem-id>   Run the verification pipeline on one card
  verify-all            Verify every card in the catalog and persist snapshots
  flag <problem-id>     Submit a learner flag against a card (needs the daemon)
  status <problem-id>   Show a card's verification status (needs the daemon)
  queue                 Show the review queue (needs the daemon)
  mcp [--http addr]     Serve the quality gate over MCP (stdio by default)
  version               Print version information
  help                  Show this help

Environment:
  CARDS_PATH      Card catalog directory (default ./cards)
  SNAPSHOT_PATH   SQLite snapshot store (default ./tensordrill.db)
  DAEMON_ADDR     Daemon base URL (default http://127.0.0.1:8080)
  SANDBOX_IMAGE   Docker image for solution execution`)
}
