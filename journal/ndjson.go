package journal

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

const (
	EventsFile    = "audit_events.ndjson"
	SnapshotsFile = "snapshots.ndjson"
)

var log = logrus.WithField("component", "journal")

// FileEvents is an audit log stored as one JSON object per line.
type FileEvents struct {
	path string
}

// FileSnapshots is a snapshot log stored as one JSON object per line.
type FileSnapshots struct {
	path string
}

// NewFileStores returns stores under <root>/data, creating the directory.
func NewFileStores(root string) (*FileEvents, *FileSnapshots, error) {
	dir := filepath.Join(root, "data")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	log.WithField("dir", dir).Debug("opened ndjson stores")
	return &FileEvents{path: filepath.Join(dir, EventsFile)},
		&FileSnapshots{path: filepath.Join(dir, SnapshotsFile)}, nil
}

func (f *FileEvents) Path() string    { return f.path }
func (f *FileSnapshots) Path() string { return f.path }

func (f *FileEvents) Append(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := EncodeEvent(e)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", e.Base().ID, err)
	}
	return appendLine(f.path, line)
}

func (f *FileEvents) ReadAll(ctx context.Context) ([]Event, error) {
	var out []Event
	err := readLines(ctx, f.path, func(n int, line []byte) error {
		e, err := DecodeEvent(line)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", f.path, n, err)
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

func (f *FileSnapshots) Write(ctx context.Context, s LedgerSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := EncodeSnapshot(s)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", s.SnapshotID, err)
	}
	return appendLine(f.path, line)
}

func (f *FileSnapshots) ReadLatest(ctx context.Context) (LedgerSnapshot, bool, error) {
	var last []byte
	lastN := 0
	err := readLines(ctx, f.path, func(n int, line []byte) error {
		last = append(last[:0], line...)
		lastN = n
		return nil
	})
	if err != nil || last == nil {
		return LedgerSnapshot{}, false, err
	}
	s, err := DecodeSnapshot(last)
	if err != nil {
		return LedgerSnapshot{}, false, fmt.Errorf("%s:%d: %w", f.path, lastN, err)
	}
	return s, true, nil
}

func appendLine(path string, line []byte) error {
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := fh.Write(append(line, '\n')); err != nil {
		fh.Close()
		return fmt.Errorf("append %s: %w", path, err)
	}
	if err := fh.Sync(); err != nil {
		fh.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	return fh.Close()
}

// readLines calls fn for every non-blank line. A missing file has no lines.
func readLines(ctx context.Context, path string, fn func(n int, line []byte) error) error {
	fh, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer fh.Close()

	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}
