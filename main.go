package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	goversion "go.hein.dev/go-version"

	"github.com/jakebf/hubc/internal/api"
)

// Set through -ldflags at release time.
var (
	version     = ""
	buildCommit = "none"
	buildDate   = "unknown"
)

func getVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	demo       bool
	verbose    bool

	path string      // resolved config path
	log  *zap.Logger // set in PersistentPreRunE
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "hubc",
		Short: "Tasks, people and knowledge notes from your TG Hub, in the terminal.",
		Example: `
hubc
hubc tasks
hubc --demo
hubc list tasks --filter week --sort priority
`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.init()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(opts, api.Collections...)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to the config file (default: user config dir/hubc/config.json).")
	cmd.PersistentFlags().BoolVar(&opts.demo, "demo", false, "Use a seeded in-memory hub instead of the configured backend.")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Write debug logs to hubc.log next to the config file.")

	for _, name := range api.Collections {
		addCollection(cmd, opts, name)
	}
	addList(cmd, opts)
	addSetup(cmd, opts)
	addVersion(cmd)
	return cmd
}

// init resolves the config path and builds the file logger. The TUI owns
// the terminal, so logs never go to stderr.
func (o *rootOptions) init() error {
	path, err := resolveConfigPath(o.configPath)
	if err != nil {
		return err
	}
	o.path = path
	log, err := newLogger(filepath.Dir(path), o.verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
		log = zap.NewNop()
	}
	o.log = log.With(zap.String("version", getVersion()))
	return nil
}

// prepare loads the config and builds the backend. A missing config runs
// the setup wizard when interactive is set and is an error otherwise.
func (o *rootOptions) prepare(interactive bool) (config, *backend, error) {
	cfg, found, err := loadConfig(o.path)
	if err != nil {
		return cfg, nil, err
	}
	if o.demo {
		b, err := newDemoBackend(cfg, o.log, demoLatency)
		return cfg, b, err
	}
	if !found {
		if !interactive {
			return cfg, nil, errors.New("no config found, run `hubc setup` first")
		}
		setupConfig(o.path, os.Stdin, os.Stdout)
		if cfg, _, err = loadConfig(o.path); err != nil {
			return cfg, nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return cfg, nil, fmt.Errorf("%w (run `hubc setup` to fix)", err)
	}
	o.log.Info("backend", zap.String("api_url", cfg.APIURL), zap.String("user_id", cfg.UserID))
	return cfg, newBackend(cfg, o.log), nil
}

func addCollection(topLevel *cobra.Command, opts *rootOptions, name string) {
	cmd := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Browse %s only.", name),
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runTUI(opts, name)
		},
	}
	topLevel.AddCommand(cmd)
}

func addSetup(topLevel *cobra.Command, opts *rootOptions) {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Re-run first-time configuration.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(opts.path); errors.Is(err, os.ErrNotExist) {
				setupConfig(opts.path, cmd.InOrStdin(), cmd.OutOrStdout())
				return nil
			}
			// loadConfigRaw keeps HUBC_* overrides out of the saved file.
			runSetup(opts.path, loadConfigRaw(opts.path), bufio.NewScanner(cmd.InOrStdin()), cmd.OutOrStdout())
			return nil
		},
	}
	topLevel.AddCommand(cmd)
}

func addVersion(topLevel *cobra.Command) {
	shortened := false
	output := "json"
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the hubc version.",
		Example: `
hubc version
hubc version --short
`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			resp := goversion.FuncWithOutput(shortened, getVersion(), buildCommit, buildDate, output)
			fmt.Fprint(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().BoolVarP(&shortened, "short", "s", false, "Print just the version number.")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format. One of 'yaml' or 'json'.")
	topLevel.AddCommand(cmd)
}

func runTUI(opts *rootOptions, collections ...string) error {
	cfg, b, err := opts.prepare(true)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		opts.log.Warn("config watcher unavailable", zap.Error(err))
		watcher = nil
	} else {
		defer watcher.Close()
		// Watch the directory: editors replace the file on save.
		if err := watcher.Add(filepath.Dir(opts.path)); err != nil {
			opts.log.Warn("could not watch config directory", zap.Error(err))
		}
	}

	m := newModel(b, screensFor(b, cfg, collections...), cfg, opts.path, watcher, opts.log)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}
