package blob

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const memoryScheme = "mem:///"

// MemoryMedium keeps blobs in process. It can imitate an eventually
// consistent backend: with a non-zero lag, a Fetch issued less than lag after
// a Put still returns the previous value.
type MemoryMedium struct {
	mu    sync.Mutex
	lag   time.Duration
	blobs map[string]*memoryBlob
	fail  int
	puts  int
	now   func() time.Time
}

type memoryBlob struct {
	current   []byte
	previous  []byte
	writtenAt time.Time
}

// NewMemoryMedium creates an empty medium with the given propagation lag.
func NewMemoryMedium(lag time.Duration) *MemoryMedium {
	return &MemoryMedium{
		lag:   lag,
		blobs: make(map[string]*memoryBlob),
		now:   time.Now,
	}
}

// FailNextFetches makes the next n Fetch calls return ErrTransient.
func (m *MemoryMedium) FailNextFetches(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = n
}

// Puts returns how many successful Put calls the medium has seen.
func (m *MemoryMedium) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

func (m *MemoryMedium) Find(ctx context.Context, prefix string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	paths := make([]string, 0, len(m.blobs))
	for p := range m.blobs {
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return "", false, nil
	}
	sort.Strings(paths)
	return memoryScheme + paths[0], true, nil
}

func (m *MemoryMedium) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := memoryPath(url)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail > 0 {
		m.fail--
		return nil, fmt.Errorf("fetch %s: %w", path, ErrTransient)
	}

	b, ok := m.blobs[path]
	if !ok {
		return nil, fmt.Errorf("fetch %s: %w", path, ErrNotFound)
	}
	data := b.current
	if m.lag > 0 && m.now().Sub(b.writtenAt) < m.lag {
		if b.previous == nil {
			return nil, fmt.Errorf("fetch %s: not yet propagated: %w", path, ErrTransient)
		}
		data = b.previous
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryMedium) Put(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blobs[path]
	if !ok {
		b = &memoryBlob{}
		m.blobs[path] = b
	}
	b.previous = b.current
	b.current = append([]byte(nil), data...)
	b.writtenAt = m.now()
	m.puts++
	return nil
}

func memoryPath(url string) (string, error) {
	if !strings.HasPrefix(url, memoryScheme) {
		return "", fmt.Errorf("memory medium: unsupported url %q", url)
	}
	path := strings.TrimPrefix(url, memoryScheme)
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path, nil
}

var _ Medium = (*MemoryMedium)(nil)
