package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"unspool/internal/config"
)

func TestLoadDefaultsExpandPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantInbox := filepath.Join(tempHome, "inbox")
	if cfg.Paths.InboxDir != wantInbox {
		t.Fatalf("unexpected inbox dir: got %q want %q", cfg.Paths.InboxDir, wantInbox)
	}
	wantStaging := filepath.Join(tempHome, ".local", "share", "unspool", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	if cfg.Paths.LibraryDir != filepath.Join(tempHome, "library") {
		t.Fatalf("unexpected library dir: %q", cfg.Paths.LibraryDir)
	}
	if cfg.Paths.DuplicatesDir != filepath.Join(tempHome, "duplicates") {
		t.Fatalf("unexpected duplicates dir: %q", cfg.Paths.DuplicatesDir)
	}
	wantWorkspace := filepath.Join(tempHome, ".local", "share", "unspool")
	if cfg.Paths.WorkspaceDir != wantWorkspace {
		t.Fatalf("unexpected workspace dir: %q", cfg.Paths.WorkspaceDir)
	}
	if cfg.Dedup.CatalogPath != filepath.Join(wantWorkspace, "catalog.json") {
		t.Fatalf("unexpected catalog path: %q", cfg.Dedup.CatalogPath)
	}
	if cfg.Workers.Count != 0 {
		t.Fatalf("expected worker count 0 (auto), got %d", cfg.Workers.Count)
	}
	if cfg.Dedup.RebuildOnStart {
		t.Fatal("expected rebuild_on_start disabled by default")
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	if cfg.Notifications.NtfyTopic != "" {
		t.Fatalf("expected notifications disabled by default, got topic %q", cfg.Notifications.NtfyTopic)
	}
	if cfg.Workflow.HeartbeatInterval != config.Default().Workflow.HeartbeatInterval {
		t.Fatalf("unexpected heartbeat interval: %d", cfg.Workflow.HeartbeatInterval)
	}
	if cfg.QueueDatabasePath() != filepath.Join(wantWorkspace, "queue.db") {
		t.Fatalf("unexpected queue database path: %q", cfg.QueueDatabasePath())
	}
	if cfg.SocketPath() != filepath.Join(wantWorkspace, "unspoold.sock") {
		t.Fatalf("unexpected socket path: %q", cfg.SocketPath())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.InboxDir, cfg.Paths.StagingDir, cfg.Paths.LibraryDir, cfg.Paths.DuplicatesDir, cfg.Paths.ReviewDir, cfg.Paths.LogDir, cfg.Paths.WorkspaceDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "unspool.toml")

	type payload struct {
		Paths struct {
			InboxDir   string `toml:"inbox_dir"`
			LibraryDir string `toml:"library_dir"`
		} `toml:"paths"`
		Workers struct {
			Count int `toml:"count"`
		} `toml:"workers"`
		Workflow struct {
			HeartbeatInterval int `toml:"heartbeat_interval"`
			HeartbeatTimeout  int `toml:"heartbeat_timeout"`
		} `toml:"workflow"`
	}
	custom := payload{}
	custom.Paths.InboxDir = filepath.Join(tempDir, "drop")
	custom.Paths.LibraryDir = filepath.Join(tempDir, "music")
	custom.Workers.Count = 3
	custom.Workflow.HeartbeatInterval = 20
	custom.Workflow.HeartbeatTimeout = 200
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.InboxDir != custom.Paths.InboxDir {
		t.Fatalf("expected inbox override, got %q", cfg.Paths.InboxDir)
	}
	if cfg.Paths.LibraryDir != custom.Paths.LibraryDir {
		t.Fatalf("expected library override, got %q", cfg.Paths.LibraryDir)
	}
	if cfg.Workers.Count != 3 {
		t.Fatalf("expected worker count 3, got %d", cfg.Workers.Count)
	}
	if cfg.Workflow.HeartbeatInterval != 20 {
		t.Fatalf("expected heartbeat interval 20, got %d", cfg.Workflow.HeartbeatInterval)
	}
	if cfg.Paths.StagingDir == "" {
		t.Fatal("expected staging dir to fall back to default")
	}
}

func TestLoadRejectsBadHeartbeat(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "unspool.toml")
	content := "[workflow]\nheartbeat_interval = 30\nheartbeat_timeout = 30\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(configPath)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "heartbeat_timeout") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsNegativeWorkers(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "unspool.toml")
	content := "[workers]\ncount = -1\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(configPath)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "workers.count") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsSharedInboxAndLibrary(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "unspool.toml")
	shared := filepath.Join(tempDir, "music")
	content := "[paths]\ninbox_dir = \"" + shared + "\"\nlibrary_dir = \"" + shared + "\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(configPath)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "must differ") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadNormalizesLoggingFormat(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "unspool.toml")
	content := "[logging]\nformat = \"fancy\"\nlevel = \"DEBUG\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("expected unknown format to normalize to console, got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected lowercased level, got %q", cfg.Logging.Level)
	}
}

func TestCreateSampleLoads(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	samplePath := filepath.Join(tempHome, ".config", "unspool", "config.toml")

	if err := config.CreateSample(samplePath); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	cfg, resolved, exists, err := config.Load(samplePath)
	if err != nil {
		t.Fatalf("Load of sample failed: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if resolved != samplePath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	defaults := config.Default()
	if cfg.Workflow.QueuePollInterval != defaults.Workflow.QueuePollInterval {
		t.Fatalf("sample queue_poll_interval drifted from default: %d", cfg.Workflow.QueuePollInterval)
	}
	if cfg.Logging.RetentionDays != defaults.Logging.RetentionDays {
		t.Fatalf("sample retention_days drifted from default: %d", cfg.Logging.RetentionDays)
	}
	if cfg.Notifications.QueueMinItems != defaults.Notifications.QueueMinItems {
		t.Fatalf("sample queue_min_items drifted from default: %d", cfg.Notifications.QueueMinItems)
	}
}
