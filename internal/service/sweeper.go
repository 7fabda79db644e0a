package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mlevkov/clipdock/internal/domain"
	"github.com/mlevkov/clipdock/internal/infrastructure/logger"
	"github.com/mlevkov/clipdock/internal/port"
)

// WatchedDir is one root the sweeper ages out, with its own threshold.
type WatchedDir struct {
	Name   string
	Path   string
	MaxAge time.Duration
}

// DirStats is the per-root aggregate exposed for health reporting.
type DirStats struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Files int    `json:"files"`
	Bytes int64  `json:"bytes"`
}

// Sweeper deletes entries older than each watched root's threshold, prunes
// directories left empty, and evicts terminal job records past the same age.
// All errors are absorbed and logged; a sweep never fails.
type Sweeper struct {
	dirs      []WatchedDir
	store     port.JobStore
	interval  time.Duration
	jobMaxAge time.Duration

	mu         sync.Mutex
	freedBytes int64
}

func NewSweeper(dirs []WatchedDir, store port.JobStore, interval, jobMaxAge time.Duration) *Sweeper {
	return &Sweeper{
		dirs:      dirs,
		store:     store,
		interval:  interval,
		jobMaxAge: jobMaxAge,
	}
}

// Start runs one sweep immediately, then on the fixed interval until the
// context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.Sweep()

	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Sweep performs one pass over every watched root and the job store,
// returning the bytes freed.
func (s *Sweeper) Sweep() int64 {
	var freed int64
	for _, dir := range s.dirs {
		freed += s.sweepDir(dir)
		pruneEmptyDirs(dir.Path)
	}
	s.evictJobs()

	s.mu.Lock()
	s.freedBytes += freed
	s.mu.Unlock()

	if freed > 0 {
		logger.Info.Printf("sweep freed %d bytes", freed)
	}
	return freed
}

func (s *Sweeper) sweepDir(dir WatchedDir) int64 {
	entries, err := os.ReadDir(dir.Path)
	if err != nil {
		// A missing root is a no-op, anything else is logged and skipped.
		if !os.IsNotExist(err) {
			logger.Warn.Printf("sweep: read %s: %v", dir.Path, err)
		}
		return 0
	}

	now := time.Now()
	var freed int64
	for _, entry := range entries {
		path := filepath.Join(dir.Path, entry.Name())
		info, err := entry.Info()
		if err != nil {
			logger.Warn.Printf("sweep: stat %s: %v", path, err)
			continue
		}
		if now.Sub(info.ModTime()) <= dir.MaxAge {
			continue
		}

		size := entrySize(path, info)
		if err := os.RemoveAll(path); err != nil {
			logger.Warn.Printf("sweep: remove %s: %v", path, err)
			continue
		}
		freed += size
	}
	return freed
}

// evictJobs deletes terminal job records whose completion is older than the
// retention threshold, mirroring the file eviction.
func (s *Sweeper) evictJobs() {
	if s.store == nil {
		return
	}
	cutoff := time.Now().UTC().Add(-s.jobMaxAge)
	for _, job := range s.store.List() {
		if !job.Status.IsTerminal() || job.CompletedAt == nil {
			continue
		}
		if job.CompletedAt.Before(cutoff) {
			if err := s.store.Delete(job.ID); err != nil && err != domain.ErrNotFound {
				logger.Warn.Printf("sweep: evict job %s: %v", job.ID, err)
			}
		}
	}
}

// Stats aggregates file count and byte size per watched root.
func (s *Sweeper) Stats() []DirStats {
	stats := make([]DirStats, 0, len(s.dirs))
	for _, dir := range s.dirs {
		st := DirStats{Name: dir.Name, Path: dir.Path}
		_ = filepath.WalkDir(dir.Path, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() {
				if info, err := d.Info(); err == nil {
					st.Files++
					st.Bytes += info.Size()
				}
			}
			return nil
		})
		stats = append(stats, st)
	}
	return stats
}

// FreedBytes returns the total bytes freed since startup.
func (s *Sweeper) FreedBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freedBytes
}

func entrySize(path string, info os.FileInfo) int64 {
	if !info.IsDir() {
		return info.Size()
	}
	var total int64
	_ = filepath.WalkDir(path, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			if fi, err := d.Info(); err == nil {
				total += fi.Size()
			}
		}
		return nil
	})
	return total
}

// pruneEmptyDirs removes directories under root left empty by a pass,
// children before parents. The root itself is kept.
func pruneEmptyDirs(root string) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			pruneEmptyTree(filepath.Join(root, entry.Name()))
		}
	}
}

func pruneEmptyTree(path string) bool {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}
	empty := true
	for _, entry := range entries {
		if entry.IsDir() && pruneEmptyTree(filepath.Join(path, entry.Name())) {
			continue
		}
		empty = false
	}
	if !empty {
		return false
	}
	if err := os.Remove(path); err != nil {
		logger.Warn.Printf("sweep: prune %s: %v", path, err)
		return false
	}
	return true
}
