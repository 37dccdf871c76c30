package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: propulse <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve      Run the HTTP proposal service")
	fmt.Fprintln(w, "  generate   Generate one proposal PDF from a YAML or JSON file")
	fmt.Fprintln(w, "  doctor     Check browser, templates, output directory and config")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'propulse help <command>' for details on a specific command.")
}

func printCommonUsage(w io.Writer) {
	fmt.Fprintln(w, "Common:")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path (or PROPULSE_CONFIG)")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Debug logging")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  OPENROUTER_API_KEY        Completion API key (required)")
	fmt.Fprintln(w, "  OPENROUTER_API_BASE       Completion base URL (required for openai provider)")
	fmt.Fprintln(w, "  PROPULSE_*                Overrides for config keys, e.g. PROPULSE_LOG_LEVEL")
}

// printServeUsage prints usage for the serve command.
func printServeUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: propulse serve [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Serve POST /proposals/generate, GET /healthz and GET /metrics.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -a, --addr <addr>         Listen address (default :5000)")
	fmt.Fprintln(w, "  -w, --workers <n>         Pooled browsers (0 = fresh per render, -1 = auto)")
	fmt.Fprintln(w)
	printCommonUsage(w)
}

// printGenerateUsage prints usage for the generate command.
func printGenerateUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: propulse generate <proposal.yaml|json> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Generate a proposal PDF. Without --output the file is written to")
	fmt.Fprintln(w, "proposal_<company>.pdf in the current directory.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -o, --output <path>       Output file or directory (\"-\" = stdout)")
	fmt.Fprintln(w, "      --inline              Emit JSON {html, pdf_base64}")
	fmt.Fprintln(w, "      --pretty              Indent HTML in inline output")
	fmt.Fprintln(w, "      --extract <mode>      repair (default), strict, passthrough")
	fmt.Fprintln(w)
	printCommonUsage(w)
}

// printDoctorUsage prints usage for the doctor command.
func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: propulse doctor [--json] [--config <name>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Check that the service can start and render.")
}

// runHelp prints help for a command.
func runHelp(args []string, w io.Writer) {
	if len(args) == 0 {
		printUsage(w)
		return
	}
	switch args[0] {
	case "serve":
		printServeUsage(w)
	case "generate":
		printGenerateUsage(w)
	case "doctor":
		printDoctorUsage(w)
	case "version":
		fmt.Fprintln(w, "Usage: propulse version")
	default:
		fmt.Fprintf(w, "Unknown command: %s\n\n", args[0])
		printUsage(w)
	}
}
