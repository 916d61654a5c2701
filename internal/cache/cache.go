package cache

import "time"

// Cache is the read/write surface the HTTP layer caches summary responses
// behind. Implementations decide eviction; callers only see hit or miss.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches that can drop expired entries in bulk.
type Cleaner interface {
	CleanExpired() int
}

// Manager owns the periodic expiry sweep for every registered cache, so
// summaries invalidated by generation bumps do not linger until evicted.
type Manager struct {
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

func NewManager() *Manager {
	return &Manager{
		caches:      make([]Cleaner, 0),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the sweep. Call before StartCleanup; the slice
// is not guarded.
func (m *Manager) Register(cache Cleaner) {
	m.caches = append(m.caches, cache)
}

// StartCleanup begins sweeping expired entries every interval.
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, cache := range m.caches {
				cache.CleanExpired()
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the sweep and waits for the goroutine to exit.
func (m *Manager) Stop() {
	if m.stopCleanup != nil {
		close(m.stopCleanup)
		<-m.cleanupDone
	}
}
