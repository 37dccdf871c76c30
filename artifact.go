package propulse

import (
	"fmt"
	"os"
	"sync"

	"github.com/alnah/propulse/internal/fileutil"
)

// ArtifactState tracks the lifecycle of a temporary PDF file.
type ArtifactState int

// Artifact states. Transitions only move forward:
// NotCreated -> Created -> Deleted.
const (
	ArtifactNotCreated ArtifactState = iota
	ArtifactCreated
	ArtifactDeleted
)

func (s ArtifactState) String() string {
	switch s {
	case ArtifactNotCreated:
		return "not-created"
	case ArtifactCreated:
		return "created"
	case ArtifactDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("ArtifactState(%d)", int(s))
	}
}

// Artifact owns one temporary PDF path for the duration of a generation.
// Cleanup deletes the file at most once, whatever path the generation took.
type Artifact struct {
	path string

	mu      sync.Mutex
	state   ArtifactState
	cleaned bool
}

// NewArtifact allocates {dir}/{uuid}.pdf. Nothing is written to disk.
func NewArtifact(dir string) (*Artifact, error) {
	path, err := fileutil.UniquePath(dir, "pdf")
	if err != nil {
		return nil, err
	}
	return &Artifact{path: path}, nil
}

// Path returns the file path the renderer writes to.
func (a *Artifact) Path() string {
	return a.path
}

// State returns the current lifecycle state.
func (a *Artifact) State() ArtifactState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// MarkCreated records that the renderer finished writing the file.
func (a *Artifact) MarkCreated() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == ArtifactDeleted || a.cleaned {
		return ErrArtifactDeleted
	}
	a.state = ArtifactCreated
	return nil
}

// ReadAll returns the full file content.
func (a *Artifact) ReadAll() ([]byte, error) {
	if err := a.requireCreated(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadArtifact, err)
	}
	return data, nil
}

// Open returns the file for streaming. The caller closes the file before
// calling Cleanup.
func (a *Artifact) Open() (*os.File, error) {
	if err := a.requireCreated(); err != nil {
		return nil, err
	}
	f, err := os.Open(a.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadArtifact, err)
	}
	return f, nil
}

// Cleanup removes the file if it exists. It is safe to call any number of
// times from any state; only the first call touches the filesystem.
// A file left behind by a failed render is removed even though the artifact
// never reached the created state.
func (a *Artifact) Cleanup() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cleaned {
		return nil
	}

	if _, err := fileutil.RemoveIfExists(a.path); err != nil {
		return fmt.Errorf("removing artifact %s: %w", a.path, err)
	}

	a.cleaned = true
	if a.state == ArtifactCreated {
		a.state = ArtifactDeleted
	}
	return nil
}

func (a *Artifact) requireCreated() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case a.state == ArtifactDeleted:
		return ErrArtifactDeleted
	case a.state != ArtifactCreated:
		return ErrArtifactNotCreated
	}
	return nil
}
