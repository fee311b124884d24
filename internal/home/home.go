// Package home manages the lily home directory and per-project layout.
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the lily home directory.
	DefaultDirName = ".lily"

	// ProjectsDirName is the subdirectory holding per-book projects.
	ProjectsDirName = "projects"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the lily home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.lily).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ProjectsPath returns the path to the projects directory.
func (d *Dir) ProjectsPath() string {
	return filepath.Join(d.path, ProjectsDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.ProjectsPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create projects directory: %w", err)
	}
	return nil
}

// Project describes the directory layout for a single book project.
// Chapter artifacts, state, failures and the event log all live here;
// a project is the unit of resumability.
type Project struct {
	root string
	slug string
}

// Project returns the layout for the named project slug.
func (d *Dir) Project(slug string) *Project {
	return &Project{root: filepath.Join(d.ProjectsPath(), slug), slug: slug}
}

// NewProjectAt builds a project layout rooted at an explicit directory.
// Used by tests and by callers that manage their own storage root.
func NewProjectAt(root, slug string) *Project {
	return &Project{root: filepath.Join(root, slug), slug: slug}
}

// Slug returns the project identifier.
func (p *Project) Slug() string { return p.slug }

// Root returns the project root directory.
func (p *Project) Root() string { return p.root }

// SourcePath is the raw ingested text.
func (p *Project) SourcePath() string {
	return filepath.Join(p.root, "source", "original.txt")
}

// ChaptersPath is the chapter-split JSONL file.
func (p *Project) ChaptersPath() string {
	return filepath.Join(p.root, "work", "chapters.jsonl")
}

// ChapterDocPath is the persisted rewrite artifact for one chapter.
func (p *Project) ChapterDocPath(chapter int) string {
	return filepath.Join(p.root, "work", "rewrite", fmt.Sprintf("ch%02d.json", chapter))
}

// StatePath is the pipeline state checkpoint.
func (p *Project) StatePath() string {
	return filepath.Join(p.root, "meta", "state.json")
}

// MetadataPath is the book metadata file.
func (p *Project) MetadataPath() string {
	return filepath.Join(p.root, "meta", "book.yaml")
}

// FailuresPath is the append-only chapter failure record.
func (p *Project) FailuresPath() string {
	return filepath.Join(p.root, "meta", "failures.jsonl")
}

// EventLogPath is the append-only structured event log.
func (p *Project) EventLogPath() string {
	return filepath.Join(p.root, "logs", "events.jsonl")
}

// CallLogPath is the append-only LLM call trace.
func (p *Project) CallLogPath() string {
	return filepath.Join(p.root, "logs", "calls.jsonl")
}

// ManifestPath is the deliverables manifest handed to downstream renderers.
func (p *Project) ManifestPath() string {
	return filepath.Join(p.root, "deliverables", "manifest.json")
}

// EnsureExists creates the project directory tree.
func (p *Project) EnsureExists() error {
	for _, dir := range []string{
		filepath.Join(p.root, "source"),
		filepath.Join(p.root, "work", "rewrite"),
		filepath.Join(p.root, "meta"),
		filepath.Join(p.root, "logs"),
		filepath.Join(p.root, "deliverables"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
