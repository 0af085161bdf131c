// Package runstore persists immutable run snapshots as versioned directories
// on disk and answers queries against the latest published run per source.
package runstore

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/threadsight/threadsight/internal/models"
)

// ErrNotFound is returned when a source has no published runs or a named
// run does not exist.
var ErrNotFound = errors.New("run not found")

const (
	stagingDir = ".staging"

	postsFile      = "posts.jsonl"
	categoriesFile = "categories.json"
	insightsFile   = "insights.json"
	snapshotFile   = "snapshot.json"
)

// Store manages the run directory namespace. Runs become visible atomically
// when their staging directory is renamed into place; a reader never observes
// a partially written run.
type Store struct {
	root   string
	logger *slog.Logger

	mu   sync.RWMutex
	runs map[string][]models.RunMetadata // source -> runs ordered by directory name
}

// NewStore opens (or creates) the run namespace rooted at root and indexes
// the runs already on disk. Leftover staging directories from interrupted
// runs are discarded.
func NewStore(root string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create run root %s: %w", root, err)
	}

	staging := filepath.Join(root, stagingDir)
	if err := os.RemoveAll(staging); err != nil {
		return nil, fmt.Errorf("clear staging dir: %w", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	s := &Store{
		root:   root,
		logger: logger,
		runs:   make(map[string][]models.RunMetadata),
	}
	if err := s.scan(); err != nil {
		return nil, err
	}

	return s, nil
}

// scan rebuilds the in-memory index from the directories on disk.
func (s *Store) scan() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("scan run root: %w", err)
	}

	count := 0
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}

		meta, err := s.readMetadata(e.Name())
		if err != nil {
			s.logger.Warn("skipping unreadable run directory",
				"directory", e.Name(),
				"error", err)
			continue
		}

		s.runs[meta.Source] = append(s.runs[meta.Source], meta)
		count++
	}

	for source := range s.runs {
		sortRuns(s.runs[source])
	}

	s.logger.Info("run store indexed",
		"root", s.root,
		"sources", len(s.runs),
		"runs", count)
	return nil
}

func (s *Store) readMetadata(dir string) (models.RunMetadata, error) {
	var snap models.Snapshot
	if err := readJSON(filepath.Join(s.root, dir, snapshotFile), &snap); err != nil {
		return models.RunMetadata{}, err
	}
	snap.Metadata.Directory = dir
	return snap.Metadata, nil
}

// Publish writes the snapshot into a staging directory keyed by stageKey and
// atomically renames it into the shared namespace. The run is either fully
// visible or not visible at all. Returns the published directory name.
func (s *Store) Publish(stageKey string, snap *models.Snapshot) (string, error) {
	stage := filepath.Join(s.root, stagingDir, stageKey)
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(stage)

	if err := writePosts(filepath.Join(stage, postsFile), snap.Posts); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(stage, categoriesFile), snap.Categories); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(stage, insightsFile), snap.Insights); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.nextDirName(snap.Metadata.Source, snap.Metadata.Timestamp.UTC().Format("20060102_150405"))
	snap.Metadata.Directory = dir

	// snapshot.json carries the final directory name, so it is written
	// after the name is settled and before the rename.
	if err := writeJSON(filepath.Join(stage, snapshotFile), snap); err != nil {
		return "", err
	}

	if err := os.Rename(stage, filepath.Join(s.root, dir)); err != nil {
		return "", fmt.Errorf("publish run %s: %w", dir, err)
	}

	s.runs[snap.Metadata.Source] = append(s.runs[snap.Metadata.Source], snap.Metadata)
	sortRuns(s.runs[snap.Metadata.Source])

	s.logger.Info("run published",
		"source", snap.Metadata.Source,
		"directory", dir,
		"posts", snap.Metadata.NumPosts,
		"insights", snap.Metadata.NumInsights)

	return dir, nil
}

// nextDirName builds {source}_{timestamp}, appending a numeric suffix when a
// run with that name already exists. Caller holds the write lock.
func (s *Store) nextDirName(source, stamp string) string {
	base := source + "_" + stamp
	name := base
	for n := 2; ; n++ {
		if _, err := os.Stat(filepath.Join(s.root, name)); os.IsNotExist(err) {
			return name
		}
		name = fmt.Sprintf("%s_%d", base, n)
	}
}

// Latest returns the most recent snapshot for a source.
func (s *Store) Latest(source string) (*models.Snapshot, error) {
	meta, err := s.latestMeta(source)
	if err != nil {
		return nil, err
	}
	return s.load(meta.Directory)
}

// LatestMetadata returns the most recent run's metadata for a source.
func (s *Store) LatestMetadata(source string) (models.RunMetadata, error) {
	return s.latestMeta(source)
}

func (s *Store) latestMeta(source string) (models.RunMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := s.runs[source]
	if len(runs) == 0 {
		return models.RunMetadata{}, fmt.Errorf("source %s: %w", source, ErrNotFound)
	}
	return runs[len(runs)-1], nil
}

// History lists all runs for a source in ascending publication order.
func (s *Store) History(source string) ([]models.RunMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := s.runs[source]
	if len(runs) == 0 {
		return nil, fmt.Errorf("source %s: %w", source, ErrNotFound)
	}

	out := make([]models.RunMetadata, len(runs))
	copy(out, runs)
	return out, nil
}

// Sources lists every source with at least one published run, ordered by name.
func (s *Store) Sources() []models.SourceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.SourceInfo, 0, len(s.runs))
	for source, runs := range s.runs {
		latest := runs[len(runs)-1]
		out = append(out, models.SourceInfo{
			Name:      source,
			NumPosts:  latest.NumPosts,
			DateRange: latest.Window,
			UpdatedAt: latest.Timestamp,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// load reads a full snapshot from a published run directory.
func (s *Store) load(dir string) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := readJSON(filepath.Join(s.root, dir, snapshotFile), &snap); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run %s: %w", dir, ErrNotFound)
		}
		return nil, fmt.Errorf("load run %s: %w", dir, err)
	}
	snap.Metadata.Directory = dir
	return &snap, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// writePosts streams posts as JSON lines, one document per post.
func writePosts(path string, posts []models.Post) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, p := range posts {
		if err := enc.Encode(p); err != nil {
			f.Close()
			return fmt.Errorf("encode post %s: %w", p.ID, err)
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func sortRuns(runs []models.RunMetadata) {
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Directory < runs[j].Directory
	})
}
