// Command html2preview captures preview images of the HTML pages of a
// built static site.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/automaxprocs/maxprocs"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	ctx, stop := notifyContext(context.Background())
	code := runMain(ctx, os.Args[1:], DefaultEnv())
	stop()
	os.Exit(code)
}

// runMain dispatches to a command and returns the process exit code.
// Anything that is not a known command is treated as capture arguments.
func runMain(ctx context.Context, args []string, env *Environment) int {
	if len(args) == 0 {
		printUsage(env.Stderr)
		return ExitUsage
	}

	switch args[0] {
	case "version", "--version":
		fmt.Fprintf(env.Stdout, "html2preview %s\n", Version)
		return ExitSuccess
	case "help", "-h", "--help":
		return runHelp(args[1:], env)
	case "doctor":
		return runDoctorCmd(args[1:], env)
	default:
		return runCapture(ctx, args, env)
	}
}

// setMaxProcs aligns GOMAXPROCS with the container CPU quota.
// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
// in which case Go runtime defaults apply and the program continues safely.
func setMaxProcs(logf func(format string, args ...any)) {
	_, _ = maxprocs.Set(maxprocs.Logger(logf))
}
