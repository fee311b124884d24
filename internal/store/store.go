// Package store provides durable per-project persistence: chapter
// artifacts, pipeline state, append-only failure records and the
// structured event log. A project assumes a single writer; the in-process
// mutex only serializes appends from concurrent chapter goroutines.
package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lilybooks/lily/internal/book"
	"github.com/lilybooks/lily/internal/home"
)

// ErrNotFound is returned when a requested artifact does not exist yet.
var ErrNotFound = errors.New("artifact not found")

// Store persists artifacts for one project.
type Store struct {
	project *home.Project
	logger  *slog.Logger

	mu sync.Mutex // guards appends to failures.jsonl and events.jsonl
}

// New creates a store rooted at the given project, creating the
// directory tree if needed.
func New(project *home.Project, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := project.EnsureExists(); err != nil {
		return nil, err
	}
	return &Store{
		project: project,
		logger:  logger.With("component", "store", "project", project.Slug()),
	}, nil
}

// Project returns the underlying project layout.
func (s *Store) Project() *home.Project {
	return s.project
}

// SaveRawText writes the ingested source text.
func (s *Store) SaveRawText(text string) error {
	return writeFileAtomic(s.project.SourcePath(), []byte(text))
}

// LoadRawText reads the ingested source text.
func (s *Store) LoadRawText() (string, error) {
	data, err := os.ReadFile(s.project.SourcePath())
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SaveChapterSplits writes the chapter splits as JSONL, one chapter per line.
func (s *Store) SaveChapterSplits(chapters []book.ChapterSplit) error {
	var buf []byte
	for _, ch := range chapters {
		line, err := json.Marshal(ch)
		if err != nil {
			return fmt.Errorf("failed to marshal chapter %d: %w", ch.Chapter, err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	return writeFileAtomic(s.project.ChaptersPath(), buf)
}

// LoadChapterSplits reads the chapter splits.
func (s *Store) LoadChapterSplits() ([]book.ChapterSplit, error) {
	f, err := os.Open(s.project.ChaptersPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var chapters []book.ChapterSplit
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var ch book.ChapterSplit
		if err := json.Unmarshal(scanner.Bytes(), &ch); err != nil {
			return nil, fmt.Errorf("failed to parse chapter split: %w", err)
		}
		chapters = append(chapters, ch)
	}
	return chapters, scanner.Err()
}

// SaveChapterDoc persists one chapter document. Write-then-read must
// reproduce an equivalent document including QA reports.
func (s *Store) SaveChapterDoc(doc *book.ChapterDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chapter %d: %w", doc.Chapter, err)
	}
	return writeFileAtomic(s.project.ChapterDocPath(doc.Chapter), data)
}

// LoadChapterDoc reads one chapter document. Returns ErrNotFound if the
// chapter has not been persisted yet.
func (s *Store) LoadChapterDoc(chapter int) (*book.ChapterDoc, error) {
	data, err := os.ReadFile(s.project.ChapterDocPath(chapter))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var doc book.ChapterDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse chapter %d: %w", chapter, err)
	}
	return &doc, nil
}

// SaveState checkpoints the pipeline state record.
func (s *Store) SaveState(state any) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return writeFileAtomic(s.project.StatePath(), data)
}

// LoadState reads the pipeline state checkpoint into out.
func (s *Store) LoadState(out any) error {
	data, err := os.ReadFile(s.project.StatePath())
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// SaveMetadata writes the book metadata.
func (s *Store) SaveMetadata(meta *book.Metadata) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return writeFileAtomic(s.project.MetadataPath(), data)
}

// LoadMetadata reads the book metadata.
func (s *Store) LoadMetadata() (*book.Metadata, error) {
	data, err := os.ReadFile(s.project.MetadataPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var meta book.Metadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &meta, nil
}

// AppendFailure records a per-chapter, per-stage failure. Append-only.
func (s *Store) AppendFailure(rec book.FailureRecord) error {
	return s.appendLine(s.project.FailuresPath(), rec)
}

// LoadFailures returns all recorded chapter failures.
func (s *Store) LoadFailures() ([]book.FailureRecord, error) {
	f, err := os.Open(s.project.FailuresPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []book.FailureRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec book.FailureRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("failed to parse failure record: %w", err)
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

// ClearFailures drops failure records for a chapter, typically after a
// successful remediation. The file stays append-only during a run; this
// rewrite only happens between runs.
func (s *Store) ClearFailures(chapter int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.LoadFailures()
	if err != nil {
		return err
	}
	var buf []byte
	for _, rec := range records {
		if rec.Chapter == chapter {
			continue
		}
		line, _ := json.Marshal(rec)
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	return writeFileAtomic(s.project.FailuresPath(), buf)
}

// Event is one entry in the structured event log.
type Event struct {
	Time    time.Time      `json:"ts"`
	Stage   string         `json:"stage"`
	Status  string         `json:"status"`
	Chapter int            `json:"chapter,omitempty"`
	Error   string         `json:"error,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// AppendEvent appends one entry to the event log.
func (s *Store) AppendEvent(ev Event) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	if err := s.appendLine(s.project.EventLogPath(), ev); err != nil {
		// The event log is advisory; failure to write it must not fail a stage.
		s.logger.Warn("failed to append event", "stage", ev.Stage, "error", err)
		return err
	}
	return nil
}

// LoadEvents returns all event log entries.
func (s *Store) LoadEvents() ([]Event, error) {
	f, err := os.Open(s.project.EventLogPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("failed to parse event: %w", err)
		}
		events = append(events, ev)
	}
	return events, scanner.Err()
}

// SaveManifest writes the deliverables manifest consumed by downstream
// rendering and audio collaborators.
func (s *Store) SaveManifest(manifest any) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return writeFileAtomic(s.project.ManifestPath(), data)
}

func (s *Store) appendLine(path string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return nil
}

// writeFileAtomic writes via a temp file and rename so a crash mid-write
// never leaves a truncated artifact behind.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
