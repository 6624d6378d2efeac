// ABOUTME: CLI entrypoint for the arbiter referee with play, serve, and import-rules commands.
// ABOUTME: Wires the LLM client, the SQLite rule store, and the session engine together.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/arbiter/llm"
	"github.com/2389-research/arbiter/referee"
	"github.com/2389-research/arbiter/rules"
	"github.com/2389-research/arbiter/tui"
	"github.com/2389-research/arbiter/web"
)

var version = "dev"

type cliConfig struct {
	configPath  string
	dbPath      string
	addr        string
	showVersion bool
	command     string
	args        []string
}

func main() {
	loadDotEnv(".env")

	cfg := parseFlags()

	if cfg.showVersion {
		fmt.Printf("arbiter %s\n", version)
		os.Exit(0)
	}

	os.Exit(run(cfg))
}

func parseFlags() cliConfig {
	var cfg cliConfig

	fs := flag.NewFlagSet("arbiter", flag.ContinueOnError)
	fs.StringVar(&cfg.configPath, "config", "", "YAML session config file")
	fs.StringVar(&cfg.dbPath, "db", "", "Rules database path (overrides config)")
	fs.StringVar(&cfg.addr, "addr", "", "Listen address for serve (overrides config)")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	fs.Usage = func() {
		printHelp(os.Stderr, version)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if fs.NArg() > 0 {
		cfg.command = fs.Arg(0)
		cfg.args = fs.Args()[1:]
	}

	return cfg
}

func run(cli cliConfig) int {
	cfg := referee.DefaultConfig()
	if cli.configPath != "" {
		loaded, err := referee.LoadConfig(cli.configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "arbiter: %v\n", err)
			return 1
		}
		cfg = loaded
	}
	if cli.dbPath != "" {
		cfg.RulesDBPath = cli.dbPath
	}
	if cli.addr != "" {
		cfg.ListenAddr = cli.addr
	}

	switch cli.command {
	case "play":
		return runPlay(cfg)
	case "serve":
		return runServe(cfg)
	case "import-rules":
		if len(cli.args) != 1 {
			fmt.Fprintln(os.Stderr, "arbiter: import-rules needs exactly one JSON file")
			return 2
		}
		return runImport(cfg, cli.args[0])
	case "":
		printHelp(os.Stderr, version)
		return 2
	default:
		fmt.Fprintf(os.Stderr, "arbiter: unknown command %q\n", cli.command)
		printHelp(os.Stderr, version)
		return 2
	}
}

// buildEngine constructs the session engine from the environment and config.
func buildEngine(cfg referee.Config) (*referee.Engine, *rules.SQLiteStore, error) {
	client, err := llm.FromEnv()
	if err != nil {
		return nil, nil, err
	}

	store, err := rules.OpenSQLite(cfg.RulesDBPath)
	if err != nil {
		return nil, nil, err
	}

	eng, err := referee.NewEngine(cfg, client, store)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return eng, store, nil
}

func runPlay(cfg referee.Config) int {
	eng, store, err := buildEngine(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "arbiter: %v\n", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	program := tea.NewProgram(tui.NewAppModel(ctx, eng), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "arbiter: %v\n", err)
		return 1
	}
	return 0
}

func runServe(cfg referee.Config) int {
	eng, store, err := buildEngine(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "arbiter: %v\n", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	srv := web.NewServer(web.ServerConfig{
		Addr:   cfg.ListenAddr,
		Engine: eng,
		Store:  store,
	})
	if err := srv.ListenAndServe(); err != nil {
		fmt.Fprintf(os.Stderr, "arbiter: %v\n", err)
		return 1
	}
	return 0
}

// runImport bulk-loads rule entries from a JSON array into the rules
// database.
func runImport(cfg referee.Config, path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "arbiter: %v\n", err)
		return 1
	}

	var entries []rules.RuleEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		fmt.Fprintf(os.Stderr, "arbiter: parse %s: %v\n", path, err)
		return 1
	}

	store, err := rules.OpenSQLite(cfg.RulesDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "arbiter: %v\n", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	for i, entry := range entries {
		if entry.Name == "" {
			log.Printf("component=cli action=skip_entry index=%d err=missing_name", i)
			continue
		}
		if err := store.Upsert(entry); err != nil {
			fmt.Fprintf(os.Stderr, "arbiter: import %q: %v\n", entry.Name, err)
			return 1
		}
	}

	total, err := store.Count()
	if err != nil {
		fmt.Fprintf(os.Stderr, "arbiter: %v\n", err)
		return 1
	}
	fmt.Printf("imported %d entries; database now holds %d rules\n", len(entries), total)
	return 0
}
