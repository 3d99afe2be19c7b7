package state

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rotisserie/eris"
)

// FileStore keeps state in a single JSON document:
//
//	{"last_successful_run": "2026-02-10T09:30:00Z", "runs": [...]}
type FileStore struct {
	path string
}

type fileDoc struct {
	LastSuccessfulRun string `json:"last_successful_run,omitempty"`
	Runs              []Run  `json:"runs,omitempty"`
}

// NewFile creates a FileStore at path. The file is created on first write.
func NewFile(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Migrate(_ context.Context) error { return nil }

func (s *FileStore) Close() error { return nil }

func (s *FileStore) LastSuccessfulRun(_ context.Context) (time.Time, bool, error) {
	doc, err := s.read()
	if err != nil {
		return time.Time{}, false, err
	}
	if doc.LastSuccessfulRun == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, doc.LastSuccessfulRun)
	if err != nil {
		return time.Time{}, false, eris.Wrapf(err, "state: parse last_successful_run in %s", s.path)
	}
	return t.UTC(), true, nil
}

func (s *FileStore) SetLastSuccessfulRun(_ context.Context, t time.Time) error {
	doc, err := s.readForWrite()
	if err != nil {
		return err
	}
	doc.LastSuccessfulRun = t.UTC().Format(time.RFC3339Nano)
	return s.write(doc)
}

func (s *FileStore) RecordRun(_ context.Context, run Run) error {
	doc, err := s.readForWrite()
	if err != nil {
		return err
	}
	doc.Runs = append(doc.Runs, run)
	if len(doc.Runs) > maxFileRuns {
		doc.Runs = doc.Runs[len(doc.Runs)-maxFileRuns:]
	}
	return s.write(doc)
}

func (s *FileStore) ListRuns(_ context.Context, limit int) ([]Run, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	runs := append([]Run(nil), doc.Runs...)
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if n := listLimit(limit); len(runs) > n {
		runs = runs[:n]
	}
	return runs, nil
}

// read loads the document. A missing file is an empty document; a corrupt
// one is an error.
func (s *FileStore) read() (*fileDoc, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &fileDoc{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "state: read %s", s.path)
	}
	var doc fileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "state: decode %s", s.path)
	}
	return &doc, nil
}

// readForWrite is read, except a corrupt document is replaced rather than
// blocking every future write.
func (s *FileStore) readForWrite() (*fileDoc, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &fileDoc{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "state: read %s", s.path)
	}
	var doc fileDoc
	if json.Unmarshal(data, &doc) != nil {
		return &fileDoc{}, nil
	}
	return &doc, nil
}

// write replaces the file atomically via a temp file and rename.
func (s *FileStore) write(doc *fileDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return eris.Wrap(err, "state: encode")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "state: create dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".pipeline_state-*.json")
	if err != nil {
		return eris.Wrap(err, "state: create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "state: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "state: close temp file")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return eris.Wrapf(err, "state: replace %s", s.path)
	}
	return nil
}
