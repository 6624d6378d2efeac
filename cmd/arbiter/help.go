// ABOUTME: Help display for the arbiter CLI with usage, flags, and environment status.
// ABOUTME: Provides printHelp for usage output and envStatus for API key detection.
package main

import (
	"fmt"
	"io"
	"os"
)

// printHelp writes a formatted help message to w.
func printHelp(w io.Writer, ver string) {
	fmt.Fprintf(w, "arbiter %s — LLM referee for tabletop sessions\n", ver)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  arbiter play [-config arbiter.yaml]       Interactive play console")
	fmt.Fprintln(w, "  arbiter serve [-config arbiter.yaml]      HTTP session API")
	fmt.Fprintln(w, "  arbiter import-rules <rules.json>         Load rule entries into the rules database")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <file>   YAML session config (provider, models, rules DB path)")
	fmt.Fprintln(w, "  -db <file>       Rules database path (overrides config)")
	fmt.Fprintln(w, "  -addr <addr>     Listen address for serve (overrides config)")
	fmt.Fprintln(w, "  -version         Print version and exit")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment:")
	fmt.Fprintf(w, "  OPENAI_API_KEY   %s\n", envStatus("OPENAI_API_KEY"))
	fmt.Fprintf(w, "  MUX_API_KEY      %s\n", envStatus("MUX_API_KEY"))
	fmt.Fprintln(w, "  OPENAI_BASE_URL  optional, for OpenAI-compatible gateways")
}

// envStatus reports whether an environment variable is set without printing
// its value.
func envStatus(key string) string {
	if _, ok := os.LookupEnv(key); ok {
		return "set"
	}
	return "not set"
}
