package rag

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/camilo-ai/camilo/rag/sources"
	"github.com/mudler/xlog"
)

// ExternalSource represents a blog source that needs to be periodically synced
type ExternalSource struct {
	URL            string        `json:"url"`
	UpdateInterval time.Duration `json:"update_interval"`
	LastUpdate     time.Time     `json:"last_update"`
}

// SourceManager keeps the segments index in sync with external blog sources
type SourceManager struct {
	ingester  *Ingester
	config    *sources.Config
	statePath string
	sources   []ExternalSource
	mu        sync.RWMutex

	// syncMu serializes Sync so a post is never stored by two syncs at once
	syncMu sync.Mutex

	// fetch is swapped in tests
	fetch func(url string, config *sources.Config) ([]sources.Post, error)
}

// NewSourceManager creates a source manager, loading registered sources
// from statePath when it exists
func NewSourceManager(ingester *Ingester, config *sources.Config, statePath string) (*SourceManager, error) {
	sm := &SourceManager{
		ingester:  ingester,
		config:    config,
		statePath: statePath,
		sources:   []ExternalSource{},
		fetch:     sources.SourceRouter,
	}
	if statePath == "" {
		return sm, nil
	}
	if _, err := os.Stat(statePath); err != nil {
		return sm, nil
	}
	if err := loadState(statePath, &sm.sources); err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}
	return sm, nil
}

func (sm *SourceManager) save() error {
	if sm.statePath == "" {
		return nil
	}
	return saveState(sm.statePath, sm.sources)
}

// Sources returns the registered sources
func (sm *SourceManager) Sources() []ExternalSource {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	out := make([]ExternalSource, len(sm.sources))
	copy(out, sm.sources)
	return out
}

// AddSource registers a new source. It is synced on the next tick.
func (sm *SourceManager) AddSource(url string, updateInterval time.Duration) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, s := range sm.sources {
		if s.URL == url {
			return fmt.Errorf("source %s already registered", url)
		}
	}

	sm.sources = append(sm.sources, ExternalSource{
		URL:            url,
		UpdateInterval: updateInterval,
	})
	return sm.save()
}

// RemoveSource removes a source. Segments already stored are kept.
func (sm *SourceManager) RemoveSource(url string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for i, s := range sm.sources {
		if s.URL == url {
			sm.sources = append(sm.sources[:i], sm.sources[i+1:]...)
			return sm.save()
		}
	}
	return fmt.Errorf("source %s not found", url)
}

// Sync fetches a source and stores its new posts. It returns the number of
// posts processed. Concurrent calls run one after the other.
func (sm *SourceManager) Sync(ctx context.Context, url string) (int, error) {
	sm.syncMu.Lock()
	defer sm.syncMu.Unlock()

	xlog.Info("Updating source", "url", url)
	posts, err := sm.fetch(url, sm.config)
	if err != nil {
		return 0, fmt.Errorf("fetching %s: %w", url, err)
	}

	processed, err := sm.ingester.IngestPosts(ctx, posts)
	if err != nil {
		return processed, err
	}

	sm.mu.Lock()
	for i := range sm.sources {
		if sm.sources[i].URL == url {
			sm.sources[i].LastUpdate = time.Now()
		}
	}
	if err := sm.save(); err != nil {
		xlog.Warn("Failed to save sources", "error", err)
	}
	sm.mu.Unlock()

	xlog.Info("Source updated", "url", url, "posts", processed)
	return processed, nil
}

// due returns the sources whose interval elapsed
func (sm *SourceManager) due(now time.Time) []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	urls := []string{}
	for _, s := range sm.sources {
		if now.Sub(s.LastUpdate) >= s.UpdateInterval {
			urls = append(urls, s.URL)
		}
	}
	return urls
}

// SyncDue syncs every source whose update interval elapsed
func (sm *SourceManager) SyncDue(ctx context.Context) {
	for _, url := range sm.due(time.Now()) {
		if _, err := sm.Sync(ctx, url); err != nil {
			xlog.Error("Error updating source", "url", url, "error", err)
		}
	}
}

// Start runs the background sync loop until ctx is done
func (sm *SourceManager) Start(ctx context.Context, tick time.Duration) {
	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		sm.SyncDue(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sm.SyncDue(ctx)
			}
		}
	}()
}
