package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrFileTooLarge is returned when an upload exceeds the size limit
var ErrFileTooLarge = errors.New("file too large")

// FileStore keeps uploaded files in a single directory
type FileStore struct {
	dir       string
	retention time.Duration
	sweeping  atomic.Bool
}

// NewFileStore creates dir if needed
func NewFileStore(dir string, retention time.Duration) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &FileStore{dir: abs, retention: retention}, nil
}

// Dir returns the absolute upload directory
func (s *FileStore) Dir() string { return s.dir }

// Save writes r to a new id-named file with extension ext. At most maxBytes
// are accepted; larger inputs leave no file behind.
func (s *FileStore) Save(r io.Reader, ext string, maxBytes int64) (id, path string, size int64, err error) {
	id = uuid.NewString()
	path = filepath.Join(s.dir, id+ext)

	f, err := os.Create(path)
	if err != nil {
		return "", "", 0, err
	}
	size, err = io.Copy(f, io.LimitReader(r, maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && size > maxBytes {
		err = ErrFileTooLarge
	}
	if err != nil {
		os.Remove(path)
		return "", "", 0, err
	}
	return id, path, size, nil
}

// Remove deletes a stored file; a missing file is not an error
func (s *FileStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Sweep deletes files whose modification time is older than the retention
// period and returns how many were removed
func (s *FileStore) Sweep(now time.Time) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		log.WithFields(log.Fields{
			"dir":   s.dir,
			"error": err.Error(),
			"event": "sweep_failed",
		}).Warn("Upload directory not readable")
		return 0
	}

	cutoff := now.Add(-s.retention)
	cleaned := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if err := os.Remove(path); err != nil {
			log.WithFields(log.Fields{
				"file":  e.Name(),
				"error": err.Error(),
				"event": "sweep_delete_failed",
			}).Error("Failed to delete old file")
			continue
		}
		cleaned++
		log.WithFields(log.Fields{
			"file":  e.Name(),
			"event": "file_swept",
		}).Info("Deleted old file")
	}

	if cleaned > 0 {
		log.WithFields(log.Fields{
			"dir":     s.dir,
			"cleaned": cleaned,
			"event":   "sweep_complete",
		}).Info("Cleaned up old files")
	}
	return cleaned
}

// ScheduleSweep runs Sweep in the background unless one is already running
func (s *FileStore) ScheduleSweep() {
	if !s.sweeping.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer s.sweeping.Store(false)
		s.Sweep(time.Now())
	}()
}
