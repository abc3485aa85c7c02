package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dhowden/tag"

	"unspool/internal/audio"
	"unspool/internal/catalog"
	"unspool/internal/cipher"
	"unspool/internal/config"
	"unspool/internal/container"
	"unspool/internal/dedup"
	"unspool/internal/fingerprint"
	"unspool/internal/logging"
	"unspool/internal/pipeline"
	"unspool/internal/testsupport"
)

func newTestEngine(t *testing.T, opts pipeline.Options) (*pipeline.Engine, *config.Config, *catalog.Catalog) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cat := catalog.Open(cfg.Dedup.CatalogPath, logging.NewNop())
	return pipeline.New(cfg, cat, logging.NewNop(), opts), cfg, cat
}

func inboxPath(cfg *config.Config, name string) string {
	return filepath.Join(cfg.Paths.InboxDir, name)
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRunBatchUnlocksNCM(t *testing.T) {
	eng, cfg, cat := newTestEngine(t, pipeline.Options{Workers: 2, StableOrder: true})

	payload := testsupport.FLACBytes(t, 44100, 44100*180, make([]byte, 4096))
	source := inboxPath(cfg, "night_drive.ncm")
	testsupport.WriteFileBytes(t, source, testsupport.NCMBytes(t, testsupport.NCMSpec{
		Title:   "Night Drive",
		Artists: []string{"Neon Lights"},
		Album:   "City Loops",
		Cover:   testsupport.PNGBytes(t, 64, 64),
		Payload: payload,
	}))

	report, err := eng.RunBatch(context.Background(), []string{source})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(report.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(report.Results))
	}
	res := report.Results[0]
	if res.State != pipeline.StateUnlocked {
		t.Fatalf("state = %q at stage %q: %v", res.State, res.Stage, res.Err)
	}
	if res.Outcome != dedup.OutcomeAdded {
		t.Fatalf("outcome = %q, want added", res.Outcome)
	}
	if res.Format != container.FormatNCM || res.Codec != audio.CodecFLAC {
		t.Fatalf("format/codec = %s/%s", res.Format, res.Codec)
	}
	want := filepath.Join(cfg.Paths.LibraryDir, "Neon Lights - Night Drive.flac")
	if res.Output != want {
		t.Fatalf("output = %q, want %q", res.Output, want)
	}
	if res.Duration != 180*time.Second {
		t.Fatalf("duration = %s, want 3m0s", res.Duration)
	}

	if _, err := os.Lstat(source); !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("source container still in inbox after unlock")
	}

	// The placed track carries the container metadata and artwork.
	f, err := os.Open(res.Output)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	m, err := tag.ReadFrom(f)
	if err != nil {
		t.Fatalf("read output tags: %v", err)
	}
	if m.Title() != "Night Drive" || m.Artist() != "Neon Lights" || m.Album() != "City Loops" {
		t.Fatalf("output tags = %q / %q / %q", m.Title(), m.Artist(), m.Album())
	}
	if m.Picture() == nil {
		t.Fatal("output lost the cover art")
	}

	// The catalog saw the addition immediately.
	entry, ok := cat.Lookup(res.Hash)
	if !ok {
		t.Fatal("added track missing from catalog")
	}
	if entry.Path != res.Output || entry.MetaKey != res.MetaKey || entry.DurationSec != 180 {
		t.Fatalf("catalog entry = %+v", entry)
	}
	gotHash, err := fingerprint.File(res.Output)
	if err != nil {
		t.Fatalf("hash output: %v", err)
	}
	if gotHash != res.Hash {
		t.Fatal("result hash does not match the placed file")
	}
}

func TestRunBatchRoundTripsPayload(t *testing.T) {
	eng, cfg, _ := newTestEngine(t, pipeline.Options{Workers: 1})

	// No metadata means nothing to embed: the placed file must be
	// byte-identical to the payload that was sealed in.
	payload := testsupport.FLACBytes(t, 48000, 48000*30, make([]byte, 8192))
	source := inboxPath(cfg, "bare.ncm")
	testsupport.WriteFileBytes(t, source, testsupport.NCMBytes(t, testsupport.NCMSpec{
		OmitMetadata: true,
		Payload:      payload,
	}))

	report, err := eng.RunBatch(context.Background(), []string{source})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	res := report.Results[0]
	if res.State != pipeline.StateUnlocked {
		t.Fatalf("state = %q at stage %q: %v", res.State, res.Stage, res.Err)
	}
	if want := filepath.Join(cfg.Paths.LibraryDir, "bare.flac"); res.Output != want {
		t.Fatalf("output = %q, want %q", res.Output, want)
	}
	if got := testsupport.ReadFileBytes(t, res.Output); !bytes.Equal(got, payload) {
		t.Fatal("placed file differs from the original payload")
	}
	if len(res.Warnings) == 0 {
		t.Fatal("missing metadata should surface as a warning")
	}
}

func TestRunBatchTagEmbedFailureIsWarning(t *testing.T) {
	eng, cfg, cat := newTestEngine(t, pipeline.Options{Workers: 1})

	// The payload carries a FLAC magic but no parseable stream, so tag
	// embedding cannot open it. Audio recovery still succeeds; the
	// failed embed must surface as a warning, never fail the file.
	payload := append([]byte("fLaC"), 0x00, 0x01, 0x02, 0x03)
	source := inboxPath(cfg, "stub.ncm")
	testsupport.WriteFileBytes(t, source, testsupport.NCMBytes(t, testsupport.NCMSpec{
		Title:   "Stub Track",
		Payload: payload,
	}))

	report, err := eng.RunBatch(context.Background(), []string{source})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	res := report.Results[0]
	if res.State != pipeline.StateUnlocked {
		t.Fatalf("state = %q at stage %q: %v", res.State, res.Stage, res.Err)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("failed tag embed should surface as a warning")
	}
	if got := testsupport.ReadFileBytes(t, res.Output); !bytes.Equal(got, payload) {
		t.Fatal("placed file differs from the decrypted payload")
	}
	if _, ok := cat.Lookup(res.Hash); !ok {
		t.Fatal("unlocked track missing from catalog")
	}
}

func TestRunBatchUnlocksQMC(t *testing.T) {
	eng, cfg, cat := newTestEngine(t, pipeline.Options{Workers: 1})

	payload := testsupport.MP3Bytes(t, 3)
	source := inboxPath(cfg, "locked_track.qmc3")
	testsupport.WriteFileBytes(t, source, testsupport.QMCBytes(t, payload))

	report, err := eng.RunBatch(context.Background(), []string{source})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	res := report.Results[0]
	if res.State != pipeline.StateUnlocked {
		t.Fatalf("state = %q at stage %q: %v", res.State, res.Stage, res.Err)
	}
	if res.Format != container.FormatQMC || res.Codec != audio.CodecMP3 {
		t.Fatalf("format/codec = %s/%s", res.Format, res.Codec)
	}
	if want := filepath.Join(cfg.Paths.LibraryDir, "locked_track.mp3"); res.Output != want {
		t.Fatalf("output = %q, want %q", res.Output, want)
	}
	if got := testsupport.ReadFileBytes(t, res.Output); !bytes.Equal(got, payload) {
		t.Fatal("placed file differs from the original payload")
	}
	// An untagged stream is identified by content hash alone.
	if res.MetaKey != "" {
		t.Fatalf("meta key = %q, want empty", res.MetaKey)
	}
	if _, ok := cat.Lookup(res.Hash); !ok {
		t.Fatal("added track missing from catalog")
	}
}

func TestRunBatchOneResultPerInput(t *testing.T) {
	eng, cfg, _ := newTestEngine(t, pipeline.Options{Workers: 4, StableOrder: true})

	good := inboxPath(cfg, "good.ncm")
	testsupport.WriteFileBytes(t, good, testsupport.NCMBytes(t, testsupport.NCMSpec{
		Payload: testsupport.FLACBytes(t, 44100, 44100*60, make([]byte, 1024)),
	}))
	alien := inboxPath(cfg, "notes.txt")
	testsupport.WriteFileBytes(t, alien, []byte("not a container"))
	missing := inboxPath(cfg, "missing.ncm")
	locked := inboxPath(cfg, "locked.qmc3")
	testsupport.WriteFileBytes(t, locked, testsupport.QMCBytes(t, testsupport.MP3Bytes(t, 2)))

	inputs := []string{good, alien, missing, locked}
	report, err := eng.RunBatch(context.Background(), inputs)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(report.Results) != len(inputs) {
		t.Fatalf("got %d results for %d inputs", len(report.Results), len(inputs))
	}
	for i, res := range report.Results {
		if res.Index != i || res.Input != inputs[i] {
			t.Fatalf("result %d reports input %q (index %d)", i, res.Input, res.Index)
		}
	}

	if report.Results[0].State != pipeline.StateUnlocked {
		t.Fatalf("good file: %v", report.Results[0].Err)
	}
	if !errors.Is(report.Results[1].Err, container.ErrUnsupported) {
		t.Fatalf("alien file error = %v, want ErrUnsupported", report.Results[1].Err)
	}
	if report.Results[2].State != pipeline.StateFailed || report.Results[2].Stage != pipeline.StageDetect {
		t.Fatalf("missing file: state %q stage %q", report.Results[2].State, report.Results[2].Stage)
	}
	if report.Results[3].State != pipeline.StateUnlocked {
		t.Fatalf("locked file: %v", report.Results[3].Err)
	}

	tally := report.Tally()
	if tally.Added != 2 || tally.Failed != 2 {
		t.Fatalf("tally = %+v", tally)
	}
}

func TestRunBatchDuplicateWithinBatch(t *testing.T) {
	eng, cfg, cat := newTestEngine(t, pipeline.Options{Workers: 1, StableOrder: true})

	data := testsupport.NCMBytes(t, testsupport.NCMSpec{
		Payload: testsupport.FLACBytes(t, 44100, 44100*90, make([]byte, 2048)),
	})
	first := inboxPath(cfg, "copy1.ncm")
	second := inboxPath(cfg, "copy2.ncm")
	testsupport.WriteFileBytes(t, first, data)
	testsupport.WriteFileBytes(t, second, data)

	report, err := eng.RunBatch(context.Background(), []string{first, second})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if got := report.Results[0].Outcome; got != dedup.OutcomeAdded {
		t.Fatalf("first copy = %q, want added", got)
	}
	dup := report.Results[1]
	if dup.Outcome != dedup.OutcomeDuplicate {
		t.Fatalf("second copy = %q, want duplicate", dup.Outcome)
	}
	if dup.Match.Path != first {
		t.Fatalf("duplicate matched %q, want the first copy", dup.Match.Path)
	}
	if filepath.Dir(dup.Output) != cfg.Paths.DuplicatesDir {
		t.Fatalf("duplicate placed at %q", dup.Output)
	}
	if cat.Count() != 1 {
		t.Fatalf("catalog has %d entries, want 1", cat.Count())
	}
}

func TestRunBatchDuplicateAcrossBatches(t *testing.T) {
	eng, cfg, cat := newTestEngine(t, pipeline.Options{Workers: 2})

	data := testsupport.NCMBytes(t, testsupport.NCMSpec{
		Payload: testsupport.FLACBytes(t, 44100, 44100*120, make([]byte, 2048)),
	})
	first := inboxPath(cfg, "track.ncm")
	testsupport.WriteFileBytes(t, first, data)

	initial, err := eng.RunBatch(context.Background(), []string{first})
	if err != nil {
		t.Fatalf("first RunBatch: %v", err)
	}
	placed := initial.Results[0].Output

	again := inboxPath(cfg, "track_again.ncm")
	testsupport.WriteFileBytes(t, again, data)

	report, err := eng.RunBatch(context.Background(), []string{again})
	if err != nil {
		t.Fatalf("second RunBatch: %v", err)
	}
	res := report.Results[0]
	if res.Outcome != dedup.OutcomeDuplicate {
		t.Fatalf("outcome = %q, want duplicate", res.Outcome)
	}
	if res.Match.Path != placed || res.Match.Entry == nil {
		t.Fatalf("match = %+v, want the placed library track", res.Match)
	}
	if cat.Count() != 1 {
		t.Fatalf("catalog has %d entries, want 1", cat.Count())
	}
	if names := dirNames(t, cfg.Paths.LibraryDir); len(names) != 1 {
		t.Fatalf("library holds %v, want one track", names)
	}
	if names := dirNames(t, cfg.Paths.DuplicatesDir); len(names) != 1 {
		t.Fatalf("duplicates holds %v, want one file", names)
	}
}

func TestRunBatchConflictOnReencode(t *testing.T) {
	eng, cfg, _ := newTestEngine(t, pipeline.Options{Workers: 1, StableOrder: true})

	flacSrc := inboxPath(cfg, "song.ncm")
	testsupport.WriteFileBytes(t, flacSrc, testsupport.NCMBytes(t, testsupport.NCMSpec{
		Title:   "Holocene",
		Artists: []string{"Bon Iver"},
		Payload: testsupport.FLACBytes(t, 44100, 44100*200, make([]byte, 2048)),
	}))
	mp3Src := inboxPath(cfg, "song_reencoded.ncm")
	testsupport.WriteFileBytes(t, mp3Src, testsupport.NCMBytes(t, testsupport.NCMSpec{
		Title:   "Holocene",
		Artists: []string{"Bon Iver"},
		Format:  "mp3",
		Payload: testsupport.MP3Bytes(t, 200),
	}))

	report, err := eng.RunBatch(context.Background(), []string{flacSrc, mp3Src})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if got := report.Results[0].Outcome; got != dedup.OutcomeAdded {
		t.Fatalf("flac = %q, want added", got)
	}
	conflict := report.Results[1]
	if conflict.Outcome != dedup.OutcomeConflict {
		t.Fatalf("mp3 = %q, want conflict (meta key %q vs %q)",
			conflict.Outcome, conflict.MetaKey, report.Results[0].MetaKey)
	}
	if conflict.Match.Path != flacSrc {
		t.Fatalf("conflict matched %q, want the flac source", conflict.Match.Path)
	}
	if filepath.Dir(conflict.Output) != cfg.Paths.DuplicatesDir {
		t.Fatalf("conflict placed at %q", conflict.Output)
	}
}

func TestRunBatchBadChecksumLeavesSource(t *testing.T) {
	eng, cfg, cat := newTestEngine(t, pipeline.Options{Workers: 1})

	source := inboxPath(cfg, "corrupt.ncm")
	testsupport.WriteFileBytes(t, source, testsupport.NCMBytes(t, testsupport.NCMSpec{
		CorruptChecksum: true,
		Payload:         testsupport.FLACBytes(t, 44100, 44100*30, make([]byte, 1024)),
	}))
	before := testsupport.ReadFileBytes(t, source)

	report, err := eng.RunBatch(context.Background(), []string{source})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	res := report.Results[0]
	if res.State != pipeline.StateFailed || res.Stage != pipeline.StageParse {
		t.Fatalf("state = %q at stage %q", res.State, res.Stage)
	}
	if !errors.Is(res.Err, container.ErrBadChecksum) {
		t.Fatalf("error = %v, want ErrBadChecksum", res.Err)
	}

	after := testsupport.ReadFileBytes(t, source)
	if !bytes.Equal(before, after) {
		t.Fatal("failed source was modified")
	}
	if names := dirNames(t, cfg.Paths.LibraryDir); len(names) != 0 {
		t.Fatalf("library holds %v after a failure", names)
	}
	if names := dirNames(t, cfg.Paths.ReviewDir); len(names) != 0 {
		t.Fatalf("review holds %v without hold-failed", names)
	}
	if cat.Count() != 0 {
		t.Fatal("failed track reached the catalog")
	}
}

func TestRunBatchHoldsFailedForReview(t *testing.T) {
	eng, cfg, _ := newTestEngine(t, pipeline.Options{Workers: 1, HoldFailed: true})

	source := inboxPath(cfg, "corrupt.ncm")
	data := testsupport.NCMBytes(t, testsupport.NCMSpec{
		CorruptChecksum: true,
		Payload:         testsupport.FLACBytes(t, 44100, 44100*30, make([]byte, 1024)),
	})
	testsupport.WriteFileBytes(t, source, data)

	report, err := eng.RunBatch(context.Background(), []string{source})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	res := report.Results[0]
	if res.State != pipeline.StateFailed {
		t.Fatalf("state = %q", res.State)
	}
	if want := filepath.Join(cfg.Paths.ReviewDir, "corrupt.ncm"); res.Output != want {
		t.Fatalf("held at %q, want %q", res.Output, want)
	}
	if _, err := os.Lstat(source); !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("held source still in inbox")
	}
	if got := testsupport.ReadFileBytes(t, res.Output); !bytes.Equal(got, data) {
		t.Fatal("held source was modified")
	}
}

func TestRunBatchUnknownScheme(t *testing.T) {
	eng, cfg, _ := newTestEngine(t, pipeline.Options{Workers: 1})

	source := inboxPath(cfg, "mystery.mflac")
	testsupport.WriteFileBytes(t, source, bytes.Repeat([]byte{0x42, 0x87, 0x13}, 100))

	report, err := eng.RunBatch(context.Background(), []string{source})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	res := report.Results[0]
	if res.State != pipeline.StateFailed || res.Stage != pipeline.StageParse {
		t.Fatalf("state = %q at stage %q", res.State, res.Stage)
	}
	if !errors.Is(res.Err, cipher.ErrUnknownScheme) {
		t.Fatalf("error = %v, want ErrUnknownScheme", res.Err)
	}
	if _, err := os.Lstat(source); err != nil {
		t.Fatal("unrecognized source should stay in the inbox")
	}
}

func TestRunBatchCancelled(t *testing.T) {
	eng, cfg, cat := newTestEngine(t, pipeline.Options{Workers: 2, StableOrder: true})

	var inputs []string
	for _, name := range []string{"a.ncm", "b.ncm", "c.ncm"} {
		path := inboxPath(cfg, name)
		testsupport.WriteFileBytes(t, path, testsupport.NCMBytes(t, testsupport.NCMSpec{
			Title:   name,
			Payload: testsupport.FLACBytes(t, 44100, 44100*30, make([]byte, 512)),
		}))
		inputs = append(inputs, path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := eng.RunBatch(ctx, inputs)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(report.Results) != len(inputs) {
		t.Fatalf("got %d results for %d inputs", len(report.Results), len(inputs))
	}
	for _, res := range report.Results {
		if res.State != pipeline.StateSkipped {
			t.Fatalf("%s: state = %q, want skipped", res.Input, res.State)
		}
		if !errors.Is(res.Err, context.Canceled) {
			t.Fatalf("%s: error = %v", res.Input, res.Err)
		}
	}
	for _, path := range inputs {
		if _, err := os.Lstat(path); err != nil {
			t.Fatalf("skipped source %s was touched: %v", path, err)
		}
	}
	if cat.Count() != 0 {
		t.Fatal("skipped batch reached the catalog")
	}
}

func TestRunBatchWorkerCountEquivalence(t *testing.T) {
	build := func(cfg *config.Config) []string {
		titles := []string{"First", "Second", "Third"}
		var inputs []string
		for i, title := range titles {
			path := inboxPath(cfg, title+".ncm")
			testsupport.WriteFileBytes(t, path, testsupport.NCMBytes(t, testsupport.NCMSpec{
				Title:   title,
				Payload: testsupport.FLACBytes(t, 44100, int64(44100*(60+30*i)), make([]byte, 1024)),
			}))
			inputs = append(inputs, path)
		}
		// An identical pair: exactly one of the two may be added.
		pair := testsupport.NCMBytes(t, testsupport.NCMSpec{
			Title:   "Paired",
			Payload: testsupport.FLACBytes(t, 44100, 44100*45, make([]byte, 1024)),
		})
		for _, name := range []string{"pair1.ncm", "pair2.ncm"} {
			path := inboxPath(cfg, name)
			testsupport.WriteFileBytes(t, path, pair)
			inputs = append(inputs, path)
		}
		return inputs
	}

	run := func(workers int) pipeline.Tally {
		eng, cfg, _ := newTestEngine(t, pipeline.Options{Workers: workers})
		report, err := eng.RunBatch(context.Background(), build(cfg))
		if err != nil {
			t.Fatalf("RunBatch with %d workers: %v", workers, err)
		}
		return report.Tally()
	}

	serial := run(1)
	parallel := run(4)
	if serial != parallel {
		t.Fatalf("dispositions differ: 1 worker %+v, 4 workers %+v", serial, parallel)
	}
	if serial.Added != 4 || serial.Duplicates != 1 {
		t.Fatalf("tally = %+v, want 4 added and 1 duplicate", serial)
	}
}

func TestRunBatchEmptyInput(t *testing.T) {
	eng, _, _ := newTestEngine(t, pipeline.Options{})

	report, err := eng.RunBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if report.BatchID == "" {
		t.Fatal("missing batch id")
	}
	if len(report.Results) != 0 {
		t.Fatalf("got %d results for no inputs", len(report.Results))
	}
}
