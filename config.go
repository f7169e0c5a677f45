package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/jakebf/hubc/internal/api"
	"github.com/jakebf/hubc/internal/projection"
)

// ─── Config ──────────────────────────────────────────────────────────────────

type config struct {
	APIURL         string  `json:"api_url" mapstructure:"api_url"`                           // hub backend base URL
	UserID         string  `json:"user_id" mapstructure:"user_id"`                           // sent as X-User-Id
	InitData       string  `json:"init_data,omitempty" mapstructure:"init_data"`             // sent as X-Telegram-Init-Data
	RequestTimeout string  `json:"request_timeout,omitempty" mapstructure:"request_timeout"` // Go duration, e.g. "15s"
	Locale         string  `json:"locale,omitempty" mapstructure:"locale"`                   // BCP 47 tag for title sorting
	SwipeCellPx    float64 `json:"swipe_cell_px,omitempty" mapstructure:"swipe_cell_px"`     // pixels per terminal column
	DefaultFilter  string  `json:"default_filter,omitempty" mapstructure:"default_filter"`   // filter on startup
	DefaultSort    string  `json:"default_sort,omitempty" mapstructure:"default_sort"`       // sort on startup
	CacheDir       string  `json:"cache_dir,omitempty" mapstructure:"cache_dir"`             // offline snapshots
	LastWriteWins  bool    `json:"last_write_wins,omitempty" mapstructure:"last_write_wins"` // disable the reload guard
	Installed      string  `json:"installed,omitempty" mapstructure:"installed"`             // RFC3339 timestamp of first setup
}

const defaultSwipeCellPx = 8

// newDefaultConfig returns a fresh default config.
func newDefaultConfig() config {
	return config{
		RequestTimeout: api.DefaultTimeout.String(),
		Locale:         "ru",
		SwipeCellPx:    defaultSwipeCellPx,
		DefaultFilter:  string(projection.FilterAll),
		DefaultSort:    string(projection.SortDate),
	}
}

func (c config) timeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		return api.DefaultTimeout
	}
	return d
}

func (c config) locale() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.Russian
	}
	return tag
}

func (c config) cellPx() float64 {
	if c.SwipeCellPx <= 0 {
		return defaultSwipeCellPx
	}
	return c.SwipeCellPx
}

// snapshotDir is where offline snapshots live. An empty cache_dir means the
// user cache directory.
func (c config) snapshotDir() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "hubc")
}

func (c config) validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return errors.New("api_url is not set (run `hubc setup` or set HUBC_API_URL)")
	}
	if strings.TrimSpace(c.UserID) == "" {
		return errors.New("user_id is not set (run `hubc setup` or set HUBC_USER_ID)")
	}
	return nil
}

func defaultConfigPath() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(cfgDir, "hubc", "config.json"), nil
}

// resolveConfigPath returns override (expanded) or the default location.
func resolveConfigPath(override string) (string, error) {
	if override != "" {
		return expandHome(override), nil
	}
	return defaultConfigPath()
}

// expandHome expands a leading "~/" to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return expanded
}

// contractHome replaces the user's home directory prefix with "~/" for display.
func contractHome(path string) string {
	home, err := homedir.Dir()
	if err != nil {
		return path
	}
	if rel, ok := strings.CutPrefix(path, home+string(filepath.Separator)); ok {
		return "~/" + rel
	}
	return path
}

// newViper builds a viper instance over path with every key defaulted, so
// HUBC_* environment variables are seen even for keys absent from the file.
func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("HUBC")
	v.AutomaticEnv()

	def := newDefaultConfig()
	v.SetDefault("api_url", def.APIURL)
	v.SetDefault("user_id", def.UserID)
	v.SetDefault("init_data", def.InitData)
	v.SetDefault("request_timeout", def.RequestTimeout)
	v.SetDefault("locale", def.Locale)
	v.SetDefault("swipe_cell_px", def.SwipeCellPx)
	v.SetDefault("default_filter", def.DefaultFilter)
	v.SetDefault("default_sort", def.DefaultSort)
	v.SetDefault("cache_dir", def.CacheDir)
	v.SetDefault("last_write_wins", def.LastWriteWins)
	v.SetDefault("installed", def.Installed)
	return v
}

// loadConfig reads path through viper with HUBC_* environment overrides.
// found is false when the file does not exist; the returned config is then
// the defaults plus the environment.
func loadConfig(path string) (cfg config, found bool, err error) {
	v := newViper(path)
	found = true
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return newDefaultConfig(), true, fmt.Errorf("read %s: %w", path, err)
		}
		found = false
	}
	cfg = newDefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return newDefaultConfig(), found, fmt.Errorf("decode %s: %w", path, err)
	}
	cfg.CacheDir = expandHome(cfg.CacheDir)
	return cfg, found, nil
}

// loadConfigRaw reads the file only, without environment overrides, so the
// setup wizard never writes an env value back to disk. Returns defaults if
// the file is missing or unreadable.
func loadConfigRaw(path string) config {
	cfg := newDefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return newDefaultConfig()
	}
	return cfg
}

func saveConfig(path string, cfg config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	// Write to a temp file then rename so a crash mid-write can't leave a
	// truncated config behind.
	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// setupConfig runs the first-time wizard for a missing config file.
func setupConfig(path string, in io.Reader, out io.Writer) config {
	scanner := bufio.NewScanner(in)
	showWelcome(scanner, out)
	cfg := newDefaultConfig()
	cfg.Installed = time.Now().Format(time.RFC3339)
	return runSetup(path, cfg, scanner, out)
}

// showWelcome displays a brief orientation and waits for enter.
func showWelcome(scanner *bufio.Scanner, out io.Writer) {
	brand := lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	dim := lipgloss.NewStyle().Foreground(colorDim)
	key := lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "  "+brand.Render("hubc"))
	fmt.Fprintln(out, dim.Render("  Tasks, people and knowledge notes from your TG Hub, in the terminal."))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  "+dim.Render("Drag a row left with the mouse to delete it, right to mark it done."))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  "+key.Render("f")+dim.Render(" filter   ")+key.Render("o")+dim.Render(" sort     ")+key.Render("/")+dim.Render(" search"))
	fmt.Fprintln(out, "  "+key.Render("n")+dim.Render(" new      ")+key.Render("e")+dim.Render(" edit     ")+key.Render("?")+dim.Render(" all keybindings"))
	fmt.Fprintln(out)
	fmt.Fprint(out, dim.Render("  Press enter to continue to setup..."))
	scanner.Scan()
	fmt.Fprintln(out)
}

func runSetup(path string, current config, scanner *bufio.Scanner, out io.Writer) config {
	promptStyle := lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	dimStyle := lipgloss.NewStyle().Foreground(colorDim)
	if scanner == nil {
		scanner = bufio.NewScanner(os.Stdin)
	}

	fmt.Fprintln(out, promptStyle.Render("  hubc setup"))
	fmt.Fprintln(out, dimStyle.Render("  Press enter to keep the current value."))
	fmt.Fprintln(out)

	prompt := func(label, defVal string) string {
		fmt.Fprintf(out, "%s %s: ", promptStyle.Render(label), dimStyle.Render("["+defVal+"]"))
		if scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				return line
			}
		}
		return defVal
	}

	cfg := current

	fmt.Fprintln(out, dimStyle.Render("  Base URL of the hub backend, e.g. https://hub.example.com"))
	cfg.APIURL = strings.TrimRight(prompt("API URL           ", current.APIURL), "/")
	fmt.Fprintln(out)

	fmt.Fprintln(out, dimStyle.Render("  Your Telegram user id. Every request is scoped to it."))
	cfg.UserID = prompt("User id           ", current.UserID)
	fmt.Fprintln(out)

	fmt.Fprintln(out, dimStyle.Render("  Telegram init data, if your backend checks it. \"none\" clears it."))
	initData := prompt("Init data         ", current.InitData)
	if strings.EqualFold(initData, "none") {
		initData = ""
	}
	cfg.InitData = initData
	fmt.Fprintln(out)

	fmt.Fprintln(out, dimStyle.Render("  Language used to sort titles (ru, en, de, ...)."))
	cfg.Locale = prompt("Locale            ", current.Locale)
	fmt.Fprintln(out)

	fmt.Fprintln(out, dimStyle.Render("  Filter and sort shown on startup."))
	cfg.DefaultFilter = string(projection.ParseFilter(prompt("Default filter    ", current.DefaultFilter)))
	cfg.DefaultSort = string(projection.ParseSort(prompt("Default sort      ", current.DefaultSort)))
	fmt.Fprintln(out)

	if err := saveConfig(path, cfg); err != nil {
		fmt.Fprintf(out, "Warning: could not save config: %v\n", err)
	} else {
		fmt.Fprintf(out, "%s %s\n\n", dimStyle.Render("Saved to"), contractHome(path))
	}
	return cfg
}
