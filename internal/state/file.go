package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps results as a JSON-lines append log and the snapshot as a
// single JSON file. It is the default store when no database is configured.
type FileStore struct {
	ResultPath   string
	SnapshotPath string
}

func NewFileStore(resultPath, snapshotPath string) *FileStore {
	return &FileStore{ResultPath: resultPath, SnapshotPath: snapshotPath}
}

func (f *FileStore) SaveResult(_ context.Context, r Result) error {
	if err := os.MkdirAll(filepath.Dir(f.ResultPath), 0o755); err != nil {
		return fmt.Errorf("result dir: %w", err)
	}
	fh, err := os.OpenFile(f.ResultPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open results: %w", err)
	}
	defer fh.Close()

	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if _, err := fh.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("append result: %w", err)
	}
	return nil
}

func (f *FileStore) SaveSnapshot(_ context.Context, s Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(f.SnapshotPath), 0o755); err != nil {
		return fmt.Errorf("snapshot dir: %w", err)
	}
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	// Write-then-rename so a crash mid-write can't leave a torn snapshot.
	tmp := f.SnapshotPath + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, f.SnapshotPath); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func (f *FileStore) LoadSnapshot(_ context.Context) (Snapshot, bool, error) {
	b, err := os.ReadFile(f.SnapshotPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, true, nil
}
