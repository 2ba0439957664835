// Command smellgraph builds a code graph of a repository and reports code
// smells found in it.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DeusData/smellgraph/internal/config"
	"github.com/DeusData/smellgraph/internal/pipeline"
	"github.com/DeusData/smellgraph/internal/store"
	"github.com/DeusData/smellgraph/internal/tools"
)

var version = "dev"

// app holds global flags and the loaded configuration.
type app struct {
	configPath string
	dbPath     string
	logLevel   string

	cfg *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "smellgraph",
		Short:         "Build a code graph of a repository and detect code smells",
		Version:       version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}
	tools.Version = version

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default ./"+config.DefaultFile+" when present)")
	pf.StringVar(&a.dbPath, "db", "", "graph database path (default ~/.cache/smellgraph/smellgraph.db)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		newBuildCmd(a),
		newAnalyzeCmd(a),
		newQueryCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
		newSymbolsCmd(),
	)
	return root
}

// setup loads the configuration, applies global flags over it and installs
// the logger. Logs go to stderr; stdout carries reports and MCP traffic.
func (a *app) setup(stderr io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.dbPath != "" {
		cfg.Store.Path = a.dbPath
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
	a.cfg = cfg
	return nil
}

func (a *app) openStore() (*store.Store, error) {
	path := a.cfg.Store.Path
	if path == "" {
		p, err := store.DefaultPath("smellgraph")
		if err != nil {
			return nil, err
		}
		path = p
	}
	s, err := store.OpenPath(path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	slog.Debug("store.open", "path", path)
	return s, nil
}

// resolveRoot returns the absolute repository root and its project name.
func resolveRoot(args []string) (string, string, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", "", fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", "", err
	}
	if !info.IsDir() {
		return "", "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, pipeline.ProjectNameFromPath(abs), nil
}
