package unlocker_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"unspool/internal/catalog"
	"unspool/internal/config"
	"unspool/internal/fingerprint"
	"unspool/internal/logging"
	"unspool/internal/pipeline"
	"unspool/internal/queue"
	"unspool/internal/services"
	"unspool/internal/testsupport"
	"unspool/internal/trackspec"
	"unspool/internal/unlocker"
)

func newTestUnlocker(t *testing.T, cfg *config.Config, store *queue.Store) *unlocker.Unlocker {
	t.Helper()
	logger := logging.NewNop()
	engine := pipeline.New(cfg, catalog.Open(cfg.Dedup.CatalogPath, logger), logger, pipeline.Options{})
	return unlocker.NewUnlockerWithDependencies(cfg, store, logger, engine)
}

func TestUnlockerStagesDecryptedTrack(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	source := filepath.Join(cfg.Paths.InboxDir, "night_drive.ncm")
	testsupport.WriteFileBytes(t, source, testsupport.NCMBytes(t, testsupport.NCMSpec{
		Title:      "Night Drive",
		Artists:    []string{"Neon Lights"},
		Album:      "City Loops",
		DurationMS: 180000,
		Payload:    testsupport.FLACBytes(t, 44100, 44100*180, make([]byte, 2048)),
	}))

	item := testsupport.SeedItem(t, store, source, queue.StatusUnlocking)
	handler := newTestUnlocker(t, cfg, store)

	if err := handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if item.OutputPath == "" {
		t.Fatal("expected staged path on item")
	}
	if filepath.Dir(item.OutputPath) != cfg.Paths.StagingDir {
		t.Fatalf("staged at %q, want under %q", item.OutputPath, cfg.Paths.StagingDir)
	}
	if _, err := os.Stat(item.OutputPath); err != nil {
		t.Fatalf("staged file missing: %v", err)
	}
	if item.ContentHash == "" {
		t.Fatal("expected content hash")
	}
	wantHash, err := fingerprint.File(item.OutputPath)
	if err != nil {
		t.Fatalf("fingerprint staged file: %v", err)
	}
	if item.ContentHash != wantHash {
		t.Fatalf("content hash %q does not match staged bytes %q", item.ContentHash, wantHash)
	}

	env, err := trackspec.Parse(item.MetadataJSON)
	if err != nil {
		t.Fatalf("parse envelope: %v", err)
	}
	if !env.Unlocked() {
		t.Fatalf("envelope missing unlock products: %+v", env)
	}
	if env.Codec != "flac" {
		t.Fatalf("codec = %q, want flac", env.Codec)
	}
	if env.MetaKey == "" {
		t.Fatal("expected metadata key for a titled track")
	}
	if env.SizeBytes <= 0 {
		t.Fatal("expected staged size")
	}
	if item.Title != "Night Drive" || item.Artist != "Neon Lights" {
		t.Fatalf("item metadata = %q / %q", item.Title, item.Artist)
	}
	if item.DurationSecs != 180 {
		t.Fatalf("duration = %d, want 180", item.DurationSecs)
	}

	// The source stays in the inbox until ingest consumes it.
	if _, err := os.Stat(source); err != nil {
		t.Fatalf("source must remain until ingest: %v", err)
	}
}

func TestUnlockerBadChecksumFailsValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	source := filepath.Join(cfg.Paths.InboxDir, "tampered.ncm")
	testsupport.WriteFileBytes(t, source, testsupport.NCMBytes(t, testsupport.NCMSpec{
		Payload:         testsupport.FLACBytes(t, 44100, 44100*10, nil),
		CorruptChecksum: true,
	}))

	item := testsupport.SeedItem(t, store, source, queue.StatusUnlocking)
	handler := newTestUnlocker(t, cfg, store)

	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation classification, got %v", err)
	}
	if services.FailureStatus(err) != queue.StatusReview {
		t.Fatal("tampered containers belong in review")
	}
	if msg := services.Message(err); !strings.Contains(msg, "integrity") {
		t.Fatalf("operator message %q should mention the integrity check", msg)
	}
}

func TestUnlockerKeyedSchemeFailsValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	body := append(make([]byte, 128), []byte("0123QTag")...)
	source := filepath.Join(cfg.Paths.InboxDir, "keyed.qmc3")
	testsupport.WriteFileBytes(t, source, body)

	item := testsupport.SeedItem(t, store, source, queue.StatusUnlocking)
	handler := newTestUnlocker(t, cfg, store)

	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation classification, got %v", err)
	}
	if msg := services.Message(err); !strings.Contains(msg, "keyed scheme") {
		t.Fatalf("operator message %q should name the keyed scheme", msg)
	}
}

func TestUnlockerLeavesNoStagingDebrisOnFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	// Valid key material sealing a payload that is not audio: decryption
	// succeeds byte-wise but the codec sniff rejects the result.
	source := filepath.Join(cfg.Paths.InboxDir, "noise.ncm")
	testsupport.WriteFileBytes(t, source, testsupport.NCMBytes(t, testsupport.NCMSpec{
		Payload: []byte("not an audio stream at all"),
	}))

	item := testsupport.SeedItem(t, store, source, queue.StatusUnlocking)
	handler := newTestUnlocker(t, cfg, store)

	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation classification, got %v", err)
	}

	entries, readErr := os.ReadDir(cfg.Paths.StagingDir)
	if readErr != nil {
		if !errors.Is(readErr, os.ErrNotExist) {
			t.Fatalf("read staging dir: %v", readErr)
		}
		return
	}
	if len(entries) != 0 {
		t.Fatalf("staging dir should be empty after failure, found %d entries", len(entries))
	}
}

func TestUnlockerHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	handler := newTestUnlocker(t, cfg, store)
	if health := handler.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy, got %+v", health)
	}

	cfg.Paths.StagingDir = ""
	noStaging := newTestUnlocker(t, cfg, store)
	if health := noStaging.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy without staging dir")
	}
}
