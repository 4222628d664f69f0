// Package logfan owns per-container stdio persistence: every
// container's runtime and console streams are written to files under
// the daemon's state directory (grounded on the teacher's
// scon/logs.go path convention) and simultaneously fanned out to any
// live subscriber (attach session, `logs -f`) via a BroadcastWriter.
package logfan

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/vas-solutus/arcad/internal/types"
)

// sink bundles the on-disk file and the live fanout for one
// container's one log stream.
type sink struct {
	file *os.File
	bc   *BroadcastWriter
}

func (s *sink) Write(p []byte) (int, error) {
	if _, err := s.file.Write(p); err != nil {
		return 0, err
	}
	return s.bc.Write(p)
}

func (s *sink) Close() error {
	s.bc.Close()
	return s.file.Close()
}

// Fanout manages the log sinks for every container this daemon knows
// about. One Fanout instance is shared by the whole daemon.
type Fanout struct {
	dir string

	mu    sync.Mutex
	sinks map[string]map[types.LogType]*sink
}

// New returns a Fanout rooted at dir (created if necessary), matching
// the teacher's per-container logPath() convention of
// "<dir>/<id>"(-console).
func New(dir string) (*Fanout, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &Fanout{
		dir:   dir,
		sinks: make(map[string]map[types.LogType]*sink),
	}, nil
}

func (f *Fanout) logPath(containerID string, lt types.LogType) string {
	switch lt {
	case types.LogConsole:
		return filepath.Join(f.dir, containerID+"-console")
	default:
		return filepath.Join(f.dir, containerID)
	}
}

// Open opens (creating the file if missing, appending otherwise) the sink
// for containerID/lt, returning a writer the exit-monitor's stdio pump
// can write guest output into. Calling Open again for an already-open
// stream returns the existing sink.
func (f *Fanout) Open(containerID string, lt types.LogType) (io.Writer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	byType, ok := f.sinks[containerID]
	if !ok {
		byType = make(map[types.LogType]*sink)
		f.sinks[containerID] = byType
	}
	if s, ok := byType[lt]; ok {
		return s, nil
	}

	file, err := os.OpenFile(f.logPath(containerID, lt), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("logfan: open %s log for %s: %w", lt, containerID, err)
	}

	s := &sink{file: file, bc: NewBroadcastWriter()}
	byType[lt] = s
	return s, nil
}

// Subscribe attaches a live reader to containerID's lt stream, creating
// the sink if it doesn't exist yet (a container can be subscribed to
// before it has ever produced output).
func (f *Fanout) Subscribe(containerID string, lt types.LogType, buffer int) (<-chan []byte, func(), error) {
	w, err := f.Open(containerID, lt)
	if err != nil {
		return nil, nil, err
	}
	return w.(*sink).bc.Subscribe(buffer)
}

// ReadAll returns the full persisted contents of containerID's lt
// stream, the non-streaming `logs` (no -f) code path. Matches the
// teacher's readLogsLocked behavior: a missing file is reported as "no
// logs of this type" rather than a bare os.ErrNotExist.
func (f *Fanout) ReadAll(containerID string, lt types.LogType) (string, error) {
	data, err := os.ReadFile(f.logPath(containerID, lt))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("container %s has no logs of type %s", containerID, lt)
		}
		return "", err
	}
	return string(data), nil
}

// Close closes every open sink for containerID, flushing file handles.
// Called when a container is removed.
func (f *Fanout) Close(containerID string) error {
	f.mu.Lock()
	byType, ok := f.sinks[containerID]
	delete(f.sinks, containerID)
	f.mu.Unlock()

	if !ok {
		return nil
	}
	var firstErr error
	for _, s := range byType {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// GCOrphaned removes log files on disk that don't correspond to any ID
// in liveIDs, run once at startup. Grounded on the teacher's
// cleanupCaches sweep of stale per-container state under its subdir.
func (f *Fanout) GCOrphaned(liveIDs map[string]bool) error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		id := name
		if idx := len(name) - len("-console"); idx > 0 && name[idx:] == "-console" {
			id = name[:idx]
		}
		if liveIDs[id] {
			continue
		}
		if err := os.Remove(filepath.Join(f.dir, name)); err != nil {
			logrus.WithError(err).WithField("file", name).Warn("logfan: failed to remove orphaned log file")
		}
	}
	return nil
}
