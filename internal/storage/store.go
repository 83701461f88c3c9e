package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	jsonExt = ".json"
	zstExt  = ".json.zst"

	worldFile  = "world"
	colonyDir  = "colonies"
	mapDir     = "maps"
	defaultVer = 1
)

// Entry describes one artifact on disk.
type Entry struct {
	ID      string
	Kind    Kind
	Path    string
	ModTime time.Time
}

type StoreOpt func(*WorldStore)

// WithCompression writes new artifacts zstd compressed.
func WithCompression(enabled bool) StoreOpt {
	return func(s *WorldStore) {
		s.compress = enabled
	}
}

// WithVersion sets the artifact version stamped on writes. Artifacts with a
// higher version are refused on read.
func WithVersion(v uint) StoreOpt {
	return func(s *WorldStore) {
		if v > 0 {
			s.version = v
		}
	}
}

// WorldStore keeps the artifacts of one world in a directory:
// world.json, colonies/<id>.json and maps/<tile>.json, each optionally
// compressed.
type WorldStore struct {
	root     string
	compress bool
	version  uint

	mu sync.RWMutex
}

func NewWorldStore(root string, opts ...StoreOpt) (*WorldStore, error) {
	s := &WorldStore{
		root:    root,
		version: defaultVer,
	}

	for _, opt := range opts {
		opt(s)
	}

	for _, dir := range []string{s.root, filepath.Join(s.root, colonyDir), filepath.Join(s.root, mapDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	return s, nil
}

func (s *WorldStore) Dir() string {
	return s.root
}

// Write stores body as the artifact kind/id, replacing any previous copy.
func (s *WorldStore) Write(kind Kind, id string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := &Artifact{
		Version:   s.version,
		ID:        id,
		Kind:      kind,
		WrittenAt: time.Now().UTC(),
		Body:      json.RawMessage(body),
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("validating %s %s: %w", kind, id, err)
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshalling json: %w", err)
	}

	path, stale := s.filePath(kind, id, s.compress), s.filePath(kind, id, !s.compress)
	if s.compress {
		data, err = compress(data)
		if err != nil {
			return fmt.Errorf("compressing %s %s: %w", kind, id, err)
		}
	}

	if err := atomicWrite(path, data, 0o644); err != nil {
		return err
	}

	if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove stale artifact", "path", stale, "error", err)
	}
	return nil
}

// Read returns the artifact kind/id or ErrNotFound.
func (s *WorldStore) Read(kind Kind, id string) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, compressed, ok := s.locate(kind, id)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}

	a, err := s.loadArtifact(path, compressed)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	if a.Kind != kind {
		return nil, fmt.Errorf("%w: %s holds %s", ErrKindMismatch, filepath.Base(path), a.Kind)
	}
	if a.Version > s.version {
		return nil, fmt.Errorf("%w: %s is version %d", ErrNewerVersion, filepath.Base(path), a.Version)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", filepath.Base(path), err)
	}

	return a, nil
}

func (s *WorldStore) Exists(kind Kind, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, _, ok := s.locate(kind, id)
	return ok
}

// Delete removes every variant of the artifact. Deleting a missing artifact
// is not an error.
func (s *WorldStore) Delete(kind Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range []bool{false, true} {
		path := s.filePath(kind, id, c)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

// List returns the artifacts of kind, most recently written first.
func (s *WorldStore) List(kind Kind) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := s.kindDir(kind)
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	var entries []Entry
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		id, ok := artifactID(f.Name())
		if !ok {
			continue
		}
		if kind == KindWorld && id != worldFile {
			continue
		}
		info, err := f.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", f.Name(), err)
		}
		entries = append(entries, Entry{
			ID:      id,
			Kind:    kind,
			Path:    filepath.Join(dir, f.Name()),
			ModTime: info.ModTime(),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ModTime.After(entries[j].ModTime)
	})
	return entries, nil
}

// ListWorlds returns the names of the world directories under saveDir.
func ListWorlds(saveDir string) ([]string, error) {
	dirs, err := os.ReadDir(saveDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", saveDir, err)
	}

	var names []string
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		for _, ext := range []string{jsonExt, zstExt} {
			if _, err := os.Stat(filepath.Join(saveDir, d.Name(), worldFile+ext)); err == nil {
				names = append(names, d.Name())
				break
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *WorldStore) kindDir(kind Kind) string {
	switch kind {
	case KindColony:
		return filepath.Join(s.root, colonyDir)
	case KindMap:
		return filepath.Join(s.root, mapDir)
	default:
		return s.root
	}
}

func (s *WorldStore) filePath(kind Kind, id string, compressed bool) string {
	if kind == KindWorld {
		id = worldFile
	}
	ext := jsonExt
	if compressed {
		ext = zstExt
	}
	return filepath.Join(s.kindDir(kind), id+ext)
}

func (s *WorldStore) locate(kind Kind, id string) (string, bool, bool) {
	for _, c := range []bool{true, false} {
		path := s.filePath(kind, id, c)
		if _, err := os.Stat(path); err == nil {
			return path, c, true
		}
	}
	return "", false, false
}

func artifactID(name string) (string, bool) {
	switch {
	case strings.HasSuffix(name, zstExt):
		return strings.TrimSuffix(name, zstExt), true
	case strings.HasSuffix(name, jsonExt):
		return strings.TrimSuffix(name, jsonExt), true
	}
	return "", false
}

// atomicWrite writes data to a temp file then renames it to the target path.
// This prevents partial or empty files if the process is interrupted.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		if removeErr := os.Remove(tmp); removeErr != nil {
			slog.Warn("failed to remove temp file after rename failure", "path", tmp, "error", removeErr)
		}
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func (s *WorldStore) loadArtifact(path string, compressed bool) (*Artifact, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	// Ignoring close error - file is read-only, error is not actionable
	defer func() { _ = file.Close() }()

	var r io.Reader = file
	if compressed {
		dec, err := zstd.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("opening zstd stream: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	jsonData, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	a := &Artifact{}
	if err := json.Unmarshal(jsonData, a); err != nil {
		return nil, fmt.Errorf("unmarshalling artifact: %w", err)
	}

	return a, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(data); err != nil {
		_ = enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
