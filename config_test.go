package main

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/language"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	tests := []struct {
		in, want string
	}{
		{"~/foo", filepath.Join(home, "foo")},
		{"~/.cache/hubc", filepath.Join(home, ".cache/hubc")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"~", "~"}, // no slash after ~, not expanded
	}
	for _, tt := range tests {
		got := expandHome(tt.in)
		if got != tt.want {
			t.Errorf("expandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, found, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if found {
		t.Error("found = true for a missing file")
	}
	if cfg.Locale != "ru" || cfg.DefaultFilter != "all" || cfg.DefaultSort != "date" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.cellPx() != defaultSwipeCellPx {
		t.Errorf("cellPx = %v, want %v", cfg.cellPx(), defaultSwipeCellPx)
	}
	if err := cfg.validate(); err == nil {
		t.Error("validate passed without api_url and user_id")
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	want := newDefaultConfig()
	want.APIURL = "https://hub.example.com"
	want.UserID = "42"
	want.RequestTimeout = "5s"
	want.Locale = "en"
	want.DefaultFilter = "week"
	if err := saveConfig(path, want); err != nil {
		t.Fatalf("saveConfig: %v", err)
	}

	got, found, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if !found {
		t.Fatal("saved config not found")
	}
	if got.APIURL != want.APIURL || got.UserID != want.UserID {
		t.Errorf("identity = %q/%q, want %q/%q", got.APIURL, got.UserID, want.APIURL, want.UserID)
	}
	if got.timeout() != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", got.timeout())
	}
	if got.locale() != language.English {
		t.Errorf("locale = %v, want en", got.locale())
	}
	if got.DefaultFilter != "week" {
		t.Errorf("DefaultFilter = %q, want week", got.DefaultFilter)
	}
	if err := got.validate(); err != nil {
		t.Errorf("validate: %v", err)
	}

	// No temp files left behind by the atomic write.
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("config dir has %d entries, want 1", len(entries))
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := newDefaultConfig()
	cfg.APIURL = "https://file.example.com"
	cfg.UserID = "1"
	if err := saveConfig(path, cfg); err != nil {
		t.Fatalf("saveConfig: %v", err)
	}
	t.Setenv("HUBC_API_URL", "https://env.example.com")
	t.Setenv("HUBC_SWIPE_CELL_PX", "12")

	got, _, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if got.APIURL != "https://env.example.com" {
		t.Errorf("APIURL = %q, want the env value", got.APIURL)
	}
	if got.UserID != "1" {
		t.Errorf("UserID = %q, want the file value", got.UserID)
	}
	if got.cellPx() != 12 {
		t.Errorf("cellPx = %v, want 12", got.cellPx())
	}

	// The wizard reads the file alone so env values never get saved.
	raw := loadConfigRaw(path)
	if raw.APIURL != "https://file.example.com" {
		t.Errorf("loadConfigRaw APIURL = %q, want the file value", raw.APIURL)
	}
}

func TestLoadConfigRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := loadConfig(path); err == nil {
		t.Error("loadConfig accepted a broken file")
	}
	if raw := loadConfigRaw(path); raw.Locale != "ru" {
		t.Errorf("loadConfigRaw on a broken file = %+v, want defaults", raw)
	}
}

func TestConfigFallbacks(t *testing.T) {
	cfg := config{RequestTimeout: "soon", Locale: "!!", SwipeCellPx: -3}
	if cfg.timeout() <= 0 {
		t.Errorf("timeout = %v, want the default", cfg.timeout())
	}
	if cfg.locale() != language.Russian {
		t.Errorf("locale = %v, want ru", cfg.locale())
	}
	if cfg.cellPx() != defaultSwipeCellPx {
		t.Errorf("cellPx = %v, want %v", cfg.cellPx(), defaultSwipeCellPx)
	}
	cfg.CacheDir = "/tmp/hubc-snapshots"
	if cfg.snapshotDir() != "/tmp/hubc-snapshots" {
		t.Errorf("snapshotDir = %q", cfg.snapshotDir())
	}
}

func TestRunSetup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	current := newDefaultConfig()
	current.InitData = "query_id=1"
	input := strings.Join([]string{
		"https://hub.example.com/", // trailing slash trimmed
		"42",
		"none", // clears init data
		"en",
		"week",
		"", // keep sort
	}, "\n") + "\n"

	var out strings.Builder
	cfg := runSetup(path, current, bufio.NewScanner(strings.NewReader(input)), &out)

	if cfg.APIURL != "https://hub.example.com" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.UserID != "42" || cfg.InitData != "" || cfg.Locale != "en" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.DefaultFilter != "week" || cfg.DefaultSort != "date" {
		t.Errorf("filter/sort = %q/%q, want week/date", cfg.DefaultFilter, cfg.DefaultSort)
	}
	if !strings.Contains(out.String(), "Saved to") {
		t.Errorf("output did not confirm the save:\n%s", out.String())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}
	var persisted config
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("unmarshal persisted config: %v", err)
	}
	if persisted.UserID != "42" {
		t.Errorf("persisted UserID = %q, want 42", persisted.UserID)
	}
}

func TestSetupConfigStampsInstalled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	input := "\nhttps://hub.example.com\n7\n\n\n\n\n"
	var out strings.Builder
	cfg := setupConfig(path, strings.NewReader(input), &out)
	if cfg.Installed == "" {
		t.Fatal("Installed should be set on first setup")
	}
	if _, err := time.Parse(time.RFC3339, cfg.Installed); err != nil {
		t.Errorf("Installed = %q is not RFC3339", cfg.Installed)
	}
	if cfg.UserID != "7" {
		t.Errorf("UserID = %q, want 7", cfg.UserID)
	}
}
