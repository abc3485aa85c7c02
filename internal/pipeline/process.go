package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"

	"unspool/internal/audio"
	"unspool/internal/catalog"
	"unspool/internal/cipher"
	"unspool/internal/container"
	"unspool/internal/dedup"
	"unspool/internal/fingerprint"
	"unspool/internal/ingest"
	"unspool/internal/logging"
)

// StageError attributes a failure to the pipeline stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return string(e.Stage) + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// FailedStage extracts the stage a pipeline error happened in.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return StageDetect
}

// Identification is what the container header alone says about a file.
type Identification struct {
	Format   container.Format
	Metadata *container.Metadata
	Warnings []Warning
}

// Identify detects and parses a container without decrypting anything.
func (e *Engine) Identify(ctx context.Context, path string) (*Identification, error) {
	f, size, format, err := openAndDetect(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	parsed, err := parseContainer(ctx, f, size, format)
	if err != nil {
		return nil, err
	}
	parsed.Scrub()

	ident := &Identification{Format: format, Metadata: parsed.Metadata}
	for _, w := range parsed.Warnings {
		ident.Warnings = append(ident.Warnings, Warning{Stage: StageParse, Message: w.Op + ": " + w.Message})
	}
	return ident, nil
}

// Unlocked is a decrypted, reconstructed track sitting in staging, ready
// to be classified and placed. Callers own the staged file: place it or
// call Discard.
type Unlocked struct {
	Source   string
	Format   container.Format
	Codec    audio.Codec
	Staged   string
	Hash     string
	MetaKey  string
	Title    string
	Artists  []string
	Album    string
	Duration time.Duration
	Size     int64
	Warnings []Warning
}

// CatalogEntry builds the library catalog entry for the track once it has
// been placed at finalPath.
func (u *Unlocked) CatalogEntry(finalPath string) catalog.Entry {
	return catalog.Entry{
		Hash:        u.Hash,
		MetaKey:     u.MetaKey,
		Path:        finalPath,
		Title:       u.Title,
		Artists:     u.Artists,
		Album:       u.Album,
		DurationSec: fingerprint.RoundSeconds(u.Duration),
		Size:        u.Size,
	}
}

// Discard removes the staged file of a track that will not be placed.
func (u *Unlocked) Discard() {
	if u.Staged != "" {
		_ = os.Remove(u.Staged)
		u.Staged = ""
	}
}

// Unlock runs one file through detection, parsing, decryption, and
// reconstruction. Cancellation takes effect between stages; errors carry
// the stage they happened in.
func (e *Engine) Unlock(ctx context.Context, path string) (*Unlocked, error) {
	if err := ctx.Err(); err != nil {
		return nil, stageErr(StageDetect, err)
	}
	f, size, format, err := openAndDetect(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	u := &Unlocked{Source: path, Format: format}

	if err := ctx.Err(); err != nil {
		return nil, stageErr(StageParse, err)
	}
	parsed, err := parseContainer(ctx, f, size, format)
	if err != nil {
		return nil, err
	}
	defer parsed.Scrub()
	for _, w := range parsed.Warnings {
		u.Warnings = append(u.Warnings, Warning{Stage: StageParse, Message: w.Op + ": " + w.Message})
	}

	if err := ctx.Err(); err != nil {
		return nil, stageErr(StageDecrypt, err)
	}
	staged, codec, err := e.decryptToStaging(f, parsed)
	if err != nil {
		return nil, stageErr(StageDecrypt, err)
	}
	u.Staged = staged
	u.Codec = codec
	// Key material is only needed for decryption.
	parsed.Scrub()

	if err := ctx.Err(); err != nil {
		u.Discard()
		return nil, stageErr(StageReconstruct, err)
	}
	if err := e.reconstruct(u, parsed); err != nil {
		u.Discard()
		return nil, stageErr(StageReconstruct, err)
	}
	return u, nil
}

// Placement is where a classified track ended up.
type Placement struct {
	Match    dedup.Match
	Output   string
	Warnings []Warning
}

// Place classifies the unlocked track, moves it into the library or the
// duplicates directory, and consumes the source container. The staged
// file is gone afterwards whether the move succeeded or not.
func (e *Engine) Place(u *Unlocked, detector *dedup.Detector) (*Placement, error) {
	match := detector.Classify(u.Hash, u.MetaKey, u.Source)

	destDir := e.cfg.Paths.LibraryDir
	if match.Outcome != dedup.OutcomeAdded {
		destDir = e.cfg.Paths.DuplicatesDir
	}
	name := ingest.TrackFileName(u.Title, u.Artists, u.Source, u.Codec.Extension())
	final, err := ingest.Move(u.Staged, destDir, name)
	if err != nil {
		u.Discard()
		return nil, stageErr(StagePlace, err)
	}
	u.Staged = ""

	placement := &Placement{Match: match, Output: final}
	if err := os.Remove(u.Source); err != nil {
		placement.Warnings = append(placement.Warnings, Warning{Stage: StagePlace, Message: "source not removed: " + err.Error()})
	}
	return placement, nil
}

// Detector builds a duplicate detector over the current catalog contents.
func (e *Engine) Detector() *dedup.Detector {
	return dedup.NewDetector(e.cat.Snapshot())
}

// AppendCatalog records placed tracks in the library catalog.
func (e *Engine) AppendCatalog(entries ...catalog.Entry) error {
	return e.cat.Append(entries...)
}

// processOne walks one file through every stage. It always returns a
// result; errors are recorded in it, never propagated.
func (e *Engine) processOne(ctx context.Context, log *slog.Logger, detector *dedup.Detector, index int, path string) Result {
	started := time.Now()
	res := Result{Input: path, Index: index}

	fail := func(stage Stage, err error) Result {
		res.State = StateFailed
		res.Stage = stage
		res.Err = err
		e.holdFailedSource(&res)
		res.Elapsed = time.Since(started)
		log.Warn("unlock failed",
			logging.String(logging.FieldSourcePath, path),
			logging.String(logging.FieldStage, string(stage)),
			logging.Error(err),
		)
		return res
	}
	skip := func(stage Stage, err error) Result {
		res.State = StateSkipped
		res.Stage = stage
		res.Err = err
		res.Elapsed = time.Since(started)
		log.Debug("unlock skipped",
			logging.String(logging.FieldSourcePath, path),
			logging.String(logging.FieldStage, string(stage)),
		)
		return res
	}

	u, err := e.Unlock(ctx, path)
	if err != nil {
		stage := FailedStage(err)
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return skip(stage, err)
		}
		return fail(stage, err)
	}
	res.Format = u.Format
	res.Codec = u.Codec
	res.Hash = u.Hash
	res.MetaKey = u.MetaKey
	res.Title = u.Title
	res.Artists = u.Artists
	res.Album = u.Album
	res.Duration = u.Duration
	res.Size = u.Size
	res.Warnings = append(res.Warnings, u.Warnings...)

	if err := ctx.Err(); err != nil {
		u.Discard()
		return skip(StageClassify, err)
	}
	placement, err := e.Place(u, detector)
	if err != nil {
		return fail(FailedStage(err), err)
	}
	res.Outcome = placement.Match.Outcome
	res.Match = placement.Match
	res.Output = placement.Output
	res.Warnings = append(res.Warnings, placement.Warnings...)
	res.State = StateUnlocked
	res.Stage = StagePlace
	res.Elapsed = time.Since(started)

	log.Info("track unlocked",
		logging.String(logging.FieldSourcePath, path),
		logging.String(logging.FieldFormat, string(res.Format)),
		logging.String(logging.FieldDisposition, string(res.Outcome)),
		logging.String("codec", string(res.Codec)),
		logging.String("output", res.Output),
		logging.Duration("elapsed", res.Elapsed),
	)
	return res
}

// holdFailedSource routes the source of a failed unlock into the review
// directory when the engine is configured to hold failures.
func (e *Engine) holdFailedSource(res *Result) {
	if !e.opts.HoldFailed {
		return
	}
	held, err := ingest.Move(res.Input, e.cfg.Paths.ReviewDir, filepath.Base(res.Input))
	if err != nil {
		res.Warnings = append(res.Warnings, Warning{Stage: res.Stage, Message: "source not held for review: " + err.Error()})
		return
	}
	res.Output = held
}

func openAndDetect(path string) (*os.File, int64, container.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, container.FormatUnknown, stageErr(StageDetect, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, container.FormatUnknown, stageErr(StageDetect, err)
	}
	header := make([]byte, 16)
	n, err := f.ReadAt(header, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, 0, container.FormatUnknown, stageErr(StageDetect, err)
	}
	format := container.DetectFormat(path, header[:n])
	if format == container.FormatUnknown {
		f.Close()
		return nil, 0, format, stageErr(StageDetect, container.ErrUnsupported)
	}
	return f, info.Size(), format, nil
}

func parseContainer(ctx context.Context, f *os.File, size int64, format container.Format) (*container.Container, error) {
	parser, ok := container.ParserFor(format)
	if !ok {
		return nil, stageErr(StageParse, container.ErrUnsupported)
	}
	parsed, err := parser.Parse(ctx, f, size)
	if err != nil {
		return nil, stageErr(StageParse, err)
	}
	return parsed, nil
}

// decryptToStaging streams the payload through the recovered cipher into
// a scratch file, sniffing the codec from the first decrypted chunk.
func (e *Engine) decryptToStaging(f *os.File, parsed *container.Container) (string, audio.Codec, error) {
	var stream cipher.Stream
	if len(parsed.KeyMaterial) > 0 {
		kb, err := cipher.NewKeybox(parsed.KeyMaterial)
		if err != nil {
			return "", "", fmt.Errorf("key material: %w", err)
		}
		stream = kb
	} else {
		stream = cipher.StaticCipher{}
	}

	if err := os.MkdirAll(e.cfg.Paths.StagingDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create staging directory: %w", err)
	}
	tmp, err := os.CreateTemp(e.cfg.Paths.StagingDir, "unlock-*")
	if err != nil {
		return "", "", fmt.Errorf("create staging file: %w", err)
	}
	discard := func(err error) (string, audio.Codec, error) {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", "", err
	}

	var codec audio.Codec
	src := io.NewSectionReader(f, parsed.PayloadOffset, parsed.PayloadSize)
	buf := make([]byte, 1<<20)
	var off int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			stream.Decrypt(chunk, off)
			if off == 0 {
				codec, err = audio.Sniff(chunk)
				if err != nil {
					return discard(fmt.Errorf("decrypted payload: %w", err))
				}
			}
			if _, err := tmp.Write(chunk); err != nil {
				return discard(fmt.Errorf("write staging file: %w", err))
			}
			off += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return discard(fmt.Errorf("read payload: %w", readErr))
		}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", "", fmt.Errorf("close staging file: %w", err)
	}
	return tmp.Name(), codec, nil
}

// reconstruct finishes the staged track: container metadata fills tag
// gaps, artwork is embedded, and the final bytes are fingerprinted for
// duplicate detection. The identity fields come from the finished stream
// itself, so a later catalog rebuild derives the same identity from the
// same file.
func (e *Engine) reconstruct(u *Unlocked, parsed *container.Container) error {
	var tags audio.Tags
	if parsed.Metadata != nil {
		tags = audio.Tags{
			Title:   parsed.Metadata.Title,
			Artists: parsed.Metadata.Artists,
			Album:   parsed.Metadata.Album,
		}
	}
	// Tag and artwork embedding is best effort: the recovered audio is
	// the contract, so any embed failure degrades to a warning.
	if err := audio.EmbedTags(u.Staged, u.Codec, tags, parsed.Artwork); err != nil {
		msg := err.Error()
		if !errors.Is(err, audio.ErrNoTagConvention) {
			msg = "tag embedding failed: " + msg
		}
		u.Warnings = append(u.Warnings, Warning{Stage: StageReconstruct, Message: msg})
	}

	f, err := os.Open(u.Staged)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	u.Size = info.Size()

	u.Title, u.Artists, u.Album = streamTags(f)
	if parsed.Metadata != nil {
		if u.Title == "" {
			u.Title = parsed.Metadata.Title
		}
		if len(u.Artists) == 0 {
			u.Artists = parsed.Metadata.Artists
		}
		if u.Album == "" {
			u.Album = parsed.Metadata.Album
		}
	}

	duration, err := audio.Duration(f, u.Size)
	if err != nil {
		duration = 0
		if parsed.Metadata != nil && parsed.Metadata.DurationMS > 0 {
			duration = time.Duration(parsed.Metadata.DurationMS) * time.Millisecond
		} else {
			u.Warnings = append(u.Warnings, Warning{Stage: StageReconstruct, Message: "duration unavailable, treated as zero"})
		}
	}
	u.Duration = duration

	hash, err := fingerprint.File(u.Staged)
	if err != nil {
		return err
	}
	u.Hash = hash
	u.MetaKey = fingerprint.MetaKey(u.Title, u.Artists, duration)
	return nil
}

// streamTags reads whatever tags the reconstructed stream itself carries.
func streamTags(f *os.File) (title string, artists []string, album string) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", nil, ""
	}
	m, err := tag.ReadFrom(f)
	if err != nil {
		return "", nil, ""
	}
	title = strings.TrimSpace(m.Title())
	album = strings.TrimSpace(m.Album())
	if artist := strings.TrimSpace(m.Artist()); artist != "" {
		artists = []string{artist}
	}
	return title, artists, album
}
