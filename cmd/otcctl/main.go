// Command otcctl is the command-line client for otcd.
//
// Usage:
//
//	otcctl <command> [flags]
//
// Mutating commands sign requests with the keypair named by -key or OTC_KEYPAIR.
// The API base defaults to OTC_URL, then http://localhost:8080.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
)

type command struct {
	summary string
	run     func(ctx context.Context, env *cliEnv, args []string) error
}

var commands = map[string]command{
	"keygen":      {"Generate a keypair file", runKeygen},
	"address":     {"Print the address of a keypair", runAddress},
	"create":      {"Escrow tokens in a new swap", runCreate},
	"fill":        {"Buy from a swap", runFill},
	"cancel":      {"Cancel a swap and refund the remainder", runCancel},
	"get":         {"Show one swap", runGet},
	"list":        {"List active swaps or a seller's swaps", runList},
	"quote":       {"Price a prospective fill", runQuote},
	"events":      {"Show audit events for a swap or time range", runEvents},
	"watch":       {"Stream live events", runWatch},
	"report":      {"Render an activity report", runReport},
	"inspect":     {"Inspect an address over Solana RPC", runInspect},
	"dev-account": {"Seed a token account (dev mode)", runDevAccount},
	"dev-airdrop": {"Set a native balance (dev mode)", runDevAirdrop},
}

// cliEnv carries process-level dependencies so commands can be tested in-process.
type cliEnv struct {
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	env := &cliEnv{stdout: os.Stdout, stderr: os.Stderr, getenv: os.Getenv}
	os.Exit(run(ctx, env, os.Args[1:]))
}

func run(ctx context.Context, env *cliEnv, args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		usage(env.stderr)
		return 2
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(env.stderr, "Error: unknown command %q\n\n", args[0])
		usage(env.stderr)
		return 2
	}

	if err := cmd.run(ctx, env, args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(env.stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: otcctl <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-12s %s\n", name, commands[name].summary)
	}
}
