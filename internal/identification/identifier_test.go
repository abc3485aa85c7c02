package identification_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"unspool/internal/catalog"
	"unspool/internal/config"
	"unspool/internal/identification"
	"unspool/internal/logging"
	"unspool/internal/pipeline"
	"unspool/internal/queue"
	"unspool/internal/services"
	"unspool/internal/testsupport"
	"unspool/internal/trackspec"
)

func newTestIdentifier(t *testing.T, cfg *config.Config, store *queue.Store) *identification.Identifier {
	t.Helper()
	logger := logging.NewNop()
	engine := pipeline.New(cfg, catalog.Open(cfg.Dedup.CatalogPath, logger), logger, pipeline.Options{})
	return identification.NewIdentifierWithDependencies(cfg, store, logger, engine)
}

func TestIdentifierPopulatesMetadata(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	source := filepath.Join(cfg.Paths.InboxDir, "night_drive.ncm")
	testsupport.WriteFileBytes(t, source, testsupport.NCMBytes(t, testsupport.NCMSpec{
		Title:      "Night Drive",
		Artists:    []string{"Neon Lights", "Polar Mist"},
		Album:      "City Loops",
		DurationMS: 201000,
		Payload:    testsupport.FLACBytes(t, 44100, 44100*201, make([]byte, 2048)),
	}))

	item := testsupport.SeedItem(t, store, source, queue.StatusIdentifying)
	handler := newTestIdentifier(t, cfg, store)

	if err := handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if item.Format != "ncm" {
		t.Fatalf("format = %q, want ncm", item.Format)
	}
	if item.Title != "Night Drive" || item.Album != "City Loops" {
		t.Fatalf("title/album = %q / %q", item.Title, item.Album)
	}
	if item.Artist != "Neon Lights, Polar Mist" {
		t.Fatalf("artist line = %q", item.Artist)
	}
	if item.DurationSecs != 201 {
		t.Fatalf("duration = %d, want 201", item.DurationSecs)
	}

	env, err := trackspec.Parse(item.MetadataJSON)
	if err != nil {
		t.Fatalf("parse envelope: %v", err)
	}
	if env.Format != "ncm" || env.Title != "Night Drive" || len(env.Artists) != 2 {
		t.Fatalf("envelope = %+v", env)
	}
	if env.Unlocked() {
		t.Fatal("identification must not claim unlock products")
	}
}

func TestIdentifierQMCWithoutHeaderMetadata(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	source := filepath.Join(cfg.Paths.InboxDir, "old_export.qmcflac")
	testsupport.WriteFileBytes(t, source, testsupport.QMCBytes(t, testsupport.FLACBytes(t, 44100, 44100*30, nil)))

	item := testsupport.SeedItem(t, store, source, queue.StatusIdentifying)
	handler := newTestIdentifier(t, cfg, store)

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.Format != "qmc" {
		t.Fatalf("format = %q, want qmc", item.Format)
	}
	if item.Title != "" {
		t.Fatalf("expected no title from a qmc header, got %q", item.Title)
	}
}

func TestIdentifierRejectsUnsupportedContainer(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	source := filepath.Join(cfg.Paths.InboxDir, "not_really.ncm")
	testsupport.WriteFileBytes(t, source, []byte("plain text, no magic"))

	item := testsupport.SeedItem(t, store, source, queue.StatusIdentifying)
	handler := newTestIdentifier(t, cfg, store)

	err := handler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected error for unsupported container")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation classification, got %v", err)
	}
	if services.FailureStatus(err) != queue.StatusReview {
		t.Fatal("unsupported containers belong in review")
	}
}

func TestIdentifierRoutesKeyedSchemeToReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	// A QTag suffix marks the per-file-key variant nothing here can open.
	body := append(make([]byte, 128), []byte("0123QTag")...)
	source := filepath.Join(cfg.Paths.InboxDir, "keyed.qmcflac")
	testsupport.WriteFileBytes(t, source, body)

	item := testsupport.SeedItem(t, store, source, queue.StatusIdentifying)
	handler := newTestIdentifier(t, cfg, store)

	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation classification, got %v", err)
	}
	if services.FailureStatus(err) != queue.StatusReview {
		t.Fatal("keyed schemes belong in review")
	}
}

func TestIdentifierRejectsEmptySourcePath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	item := testsupport.SeedItem(t, store, "/inbox/somewhere.ncm", queue.StatusIdentifying)
	item.SourcePath = ""

	handler := newTestIdentifier(t, cfg, store)
	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestIdentifierHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	handler := newTestIdentifier(t, cfg, store)
	if health := handler.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy, got %+v", health)
	}

	broken := identification.NewIdentifierWithDependencies(cfg, store, logging.NewNop(), nil)
	if health := broken.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy without engine")
	}

	cfg.Paths.InboxDir = ""
	noInbox := newTestIdentifier(t, cfg, store)
	if health := noInbox.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy without inbox dir")
	}
}
