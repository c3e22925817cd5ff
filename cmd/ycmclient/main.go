// Package main is a small CLI for the completion daemon client: it starts
// a session, runs a one-shot completion query or health check, and prints
// the results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dshills/ycmclient/internal/config"
	"github.com/dshills/ycmclient/internal/logging"
	"github.com/dshills/ycmclient/internal/ycm"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  string
		filePath    string
		line        int
		col         int
		mode        string
		check       bool
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to client configuration file (TOML or YAML)")
	flag.StringVar(&filePath, "file", "", "File to request completions for")
	flag.IntVar(&line, "line", 1, "1-based line of the cursor")
	flag.IntVar(&col, "col", 1, "1-based column of the cursor")
	flag.StringVar(&mode, "mode", "", "Editor mode for the file (default: inferred from extension)")
	flag.BoolVar(&check, "check", false, "Start the daemon and report whether it is healthy")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("ycmclient %s (%s)\n", version, commit)
		return 0
	}

	if configPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -config is required")
		return 2
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Output: os.Stderr,
		Prefix: "ycmclient",
	})

	session := ycm.NewSessionFromConfig(cfg, ycm.WithLogger(logger))
	defer session.Stop()

	// Stop the daemon on Ctrl-C as well as on normal exit.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		session.Stop()
		os.Exit(130)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := session.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: starting session: %v\n", err)
		return 1
	}
	if err := session.WaitReady(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: waiting for daemon: %v\n", err)
		return 1
	}

	client := ycm.NewCompletionClient(session,
		ycm.WithModeFilter(cfg.ModeEligible),
		ycm.WithClientLogger(logger),
	)

	if check {
		if client.IsHealthy(ctx) {
			fmt.Println("daemon healthy")
			return 0
		}
		fmt.Println("daemon unhealthy")
		return 1
	}

	if filePath == "" {
		fmt.Fprintln(os.Stderr, "Error: -file is required unless -check is given")
		return 2
	}

	contents, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: reading %s: %v\n", filePath, err)
		return 1
	}

	if mode == "" {
		mode = modeForFile(filePath)
	}

	st := ycm.EditorState{
		Filepath: filePath,
		Line:     line,
		Column:   col,
		Buffers: []ycm.Buffer{
			{Path: filePath, Contents: string(contents), Mode: mode},
		},
	}

	if cfg.Server.ExtraConf != "" {
		if err := client.LoadExtraConfig(ctx, cfg.Server.ExtraConf); err != nil {
			logger.Warn("extra conf load failed: %v", err)
		}
	}

	candidates, err := client.RequestCompletions(ctx, st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	for _, c := range candidates {
		text := c.MenuText
		if text == "" {
			text = c.InsertionText
		}
		if c.Kind != "" {
			fmt.Printf("%s\t[%s]\t%s\n", text, c.Kind, c.ExtraMenuInfo)
		} else {
			fmt.Printf("%s\t%s\n", text, c.ExtraMenuInfo)
		}
	}
	return 0
}

// modeForFile infers an editor mode from a file extension so one-shot
// queries don't need an explicit -mode.
func modeForFile(path string) string {
	switch filepath.Ext(path) {
	case ".js", ".jsx", ".mjs":
		return "js-mode"
	case ".py":
		return "python-mode"
	case ".cpp", ".cc", ".cxx", ".h", ".hpp":
		return "c++-mode"
	default:
		return "fundamental-mode"
	}
}
