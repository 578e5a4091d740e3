// Package monitor lists and watches the pipeline output folder so the
// caller can see converted batches appear without touching the job
// core.
package monitor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Category is the coarse triage bucket for one output file.
type Category int

const (
	CategoryOther Category = iota
	CategoryFBX
	CategoryLog
	CategoryErr
)

func (c Category) String() string {
	switch c {
	case CategoryFBX:
		return "fbx"
	case CategoryLog:
		return "log"
	case CategoryErr:
		return "err"
	default:
		return "other"
	}
}

// Entry describes one regular file in the output folder.
type Entry struct {
	Name     string
	Size     int64
	ModTime  time.Time
	Category Category
}

// Stats summarizes one listing.
type Stats struct {
	Total     int
	FBX       int
	Logs      int
	Errors    int
	TotalSize int64
}

// List returns the regular files of dir sorted by name, with per-file
// categories and summary stats.
func List(dir string) ([]Entry, Stats, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("reading output folder: %w", err)
	}

	var entries []Entry
	var stats Stats
	for _, d := range dirents {
		if !d.Type().IsRegular() {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		e := Entry{
			Name:     d.Name(),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			Category: categorize(d.Name()),
		}
		entries = append(entries, e)

		stats.Total++
		stats.TotalSize += e.Size
		switch e.Category {
		case CategoryFBX:
			stats.FBX++
		case CategoryLog:
			stats.Logs++
		case CategoryErr:
			stats.Errors++
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, stats, nil
}

func categorize(name string) Category {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".fbx":
		return CategoryFBX
	case ".log":
		return CategoryLog
	case ".err":
		return CategoryErr
	default:
		return CategoryOther
	}
}

// Watch invokes fn with a fresh listing once on entry and then after
// every change to dir, coalescing bursts of filesystem events into one
// refresh per interval. It returns when ctx is cancelled or the
// watcher fails.
func Watch(ctx context.Context, dir string, coalesce time.Duration, fn func([]Entry, Stats)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	refresh := func() {
		entries, stats, err := List(dir)
		if err != nil {
			return
		}
		fn(entries, stats)
	}
	refresh()

	// The timer is armed on the first event of a burst and drained
	// before re-arming, so each burst yields exactly one refresh.
	timer := time.NewTimer(coalesce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !pending {
				timer.Reset(coalesce)
				pending = true
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watching %s: %w", dir, err)
		case <-timer.C:
			pending = false
			refresh()
		}
	}
}
