package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: html2preview [flags] <root-dir>")
	fmt.Fprintln(w, "       html2preview <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Capture a preview image of every HTML page of a built site.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  doctor     Check the browser and system setup")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'html2preview help capture' for the capture flags.")
}

// printCaptureUsage prints usage for the capture command.
func printCaptureUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: html2preview [flags] <root-dir>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Serve <root-dir> on loopback, screenshot each matching page and write")
	fmt.Fprintln(w, "<root-dir>/images/<path with / replaced by ___>.png.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintln(w, "  root-dir    Built site directory (or HTML2PREVIEW_ROOT)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Pages:")
	fmt.Fprintln(w, "      --glob <pattern>        Pages to capture (default: **/*.{html,htm})")
	fmt.Fprintln(w, "      --selector <css>        Element to capture (default: whole viewport)")
	fmt.Fprintln(w, "      --remove-originals      Delete each page once its image is written")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Browser:")
	fmt.Fprintln(w, "      --width <n>             Viewport width (default: 480)")
	fmt.Fprintln(w, "      --height <n>            Viewport height (default: 360)")
	fmt.Fprintln(w, "  -t, --timeout <d>           Per-page navigation and wait timeout (default: 30s)")
	fmt.Fprintln(w, "  -w, --workers <n>           Parallel browsing contexts (0 = auto)")
	fmt.Fprintln(w, "      --port <n>              Static server port (0 = any free port)")
	fmt.Fprintln(w, "      --stealth               Hide headless browser signals from page scripts")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Images:")
	fmt.Fprintln(w, "  -o, --output <dir>          Image directory (default: <root-dir>/images)")
	fmt.Fprintln(w, "      --format <s>            Image format: png, jpeg")
	fmt.Fprintln(w, "      --quality <n>           JPEG quality (1-100, default: 90)")
	fmt.Fprintln(w, "      --resize-width <n>      Downscale images to this width")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Failures:")
	fmt.Fprintln(w, "      --fail-on-error         Exit 6 when any page fails")
	fmt.Fprintln(w, "      --max-write-failures <n> Abort after n consecutive write failures (default: 3, -1 = never)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config and output:")
	fmt.Fprintln(w, "  -c, --config <path>         Config file (default: ./html2preview.yaml, then user config dir)")
	fmt.Fprintln(w, "      --print-config          Print the merged configuration and exit")
	fmt.Fprintln(w, "      --json                  Print the run report as JSON")
	fmt.Fprintln(w, "  -q, --quiet                 Only show errors")
	fmt.Fprintln(w, "  -v, --verbose               Show per-page progress")
}

// printDoctorUsage prints help for the doctor command.
func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: html2preview doctor [--json] [--config FILE] [root-dir]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Check everything a capture run needs: the browser, the config file")
	fmt.Fprintln(w, "and HTML2PREVIEW_* variables, the temp directory and the static server")
	fmt.Fprintln(w, "port. With a root directory (or HTML2PREVIEW_ROOT), also count the")
	fmt.Fprintln(w, "matching pages and check that the output directory is writable.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "      --json                  Print the diagnosis as JSON")
	fmt.Fprintln(w, "  -c, --config string         Config file to check")
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) int {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return ExitSuccess
	}

	switch args[0] {
	case "capture":
		printCaptureUsage(env.Stdout)
	case "doctor":
		printDoctorUsage(env.Stdout)
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: html2preview version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: html2preview help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
		return ExitUsage
	}
	return ExitSuccess
}
