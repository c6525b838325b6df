package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/yourusername/matchedge/internal/models"
)

const (
	liveFile  = "LIVE"
	indexFile = "index.json"
)

// Store persists artifacts, their audit records and the live pointer per league.
type Store interface {
	Save(ctx context.Context, a *Artifact) error
	Load(ctx context.Context, league, version string) (*Artifact, error)
	Records(ctx context.Context, league string) ([]*models.ArtifactRecord, error)
	PutRecord(ctx context.Context, rec *models.ArtifactRecord) error
	LiveVersion(ctx context.Context, league string) (string, error)
	SetLive(ctx context.Context, league, version string) error
	Leagues(ctx context.Context) ([]string, error)
}

// FileStore lays artifacts out as <dir>/<league>/<version>.json with an
// index.json of audit records and a LIVE file holding the live version.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the root directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Save writes a, refusing to overwrite a different artifact under the same version.
func (s *FileStore) Save(ctx context.Context, a *Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.artifactPath(a.Metadata.League, a.Version)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s@%s", models.ErrDuplicateKey, a.Metadata.League, a.Version)
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	return writeFileAtomic(path, data)
}

// Load reads and verifies an artifact. Every failure is a *models.ModelLoadError.
func (s *FileStore) Load(ctx context.Context, league, version string) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.ModelLoadError{League: league, Version: version, Cause: err}
	}
	data, err := os.ReadFile(s.artifactPath(league, version))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &models.ModelLoadError{League: league, Version: version, Cause: models.ErrNotFound}
	}
	if err != nil {
		return nil, &models.ModelLoadError{League: league, Version: version, Cause: err}
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, &models.ModelLoadError{League: league, Version: version,
			Cause: fmt.Errorf("%w: %v", models.ErrArtifactCorrupt, err)}
	}
	if err := a.Verify(); err != nil {
		return nil, &models.ModelLoadError{League: league, Version: version, Cause: err}
	}
	return &a, nil
}

// Records returns the audit records of a league, oldest first.
func (s *FileStore) Records(ctx context.Context, league string) ([]*models.ArtifactRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readIndex(league)
}

// PutRecord inserts or replaces the record of rec.Version.
func (s *FileStore) PutRecord(ctx context.Context, rec *models.ArtifactRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readIndex(rec.League)
	if err != nil {
		return err
	}
	replaced := false
	for i, r := range records {
		if r.Version == rec.Version {
			records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, rec)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.dir, rec.League, indexFile), data)
}

// LiveVersion returns the live version or models.ErrNoLiveArtifact.
func (s *FileStore) LiveVersion(ctx context.Context, league string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, league, liveFile))
	if errors.Is(err, fs.ErrNotExist) {
		return "", models.ErrNoLiveArtifact
	}
	if err != nil {
		return "", err
	}
	version := strings.TrimSpace(string(data))
	if version == "" {
		return "", models.ErrNoLiveArtifact
	}
	return version, nil
}

// SetLive points the league at version.
func (s *FileStore) SetLive(ctx context.Context, league, version string) error {
	return writeFileAtomic(filepath.Join(s.dir, league, liveFile), []byte(version+"\n"))
}

// Leagues lists leagues with at least one stored artifact.
func (s *FileStore) Leagues(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *FileStore) readIndex(league string) ([]*models.ArtifactRecord, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, league, indexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var records []*models.ArtifactRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode artifact index for %s: %w", league, err)
	}
	return records, nil
}

func (s *FileStore) artifactPath(league, version string) string {
	return filepath.Join(s.dir, league, version+".json")
}

// writeFileAtomic replaces path via a rename so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
