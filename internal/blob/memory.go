package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	data        []byte
	contentType string
	uploadedAt  time.Time
}

// Memory is an in-process Store for development and tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	links   *Links
	writes  int
	now     func() time.Time
}

func NewMemory(links *Links) *Memory {
	return &Memory{objects: make(map[string]memoryObject), links: links, now: time.Now}
}

// SetClock replaces the upload time source.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *Memory) Put(_ context.Context, path string, r io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	m.mu.Lock()
	m.objects[path] = memoryObject{data: data, contentType: contentType, uploadedAt: m.now()}
	m.writes++
	m.mu.Unlock()
	return m.URL(path), nil
}

func (m *Memory) Open(_ context.Context, path string) (*Object, error) {
	m.mu.RLock()
	obj, ok := m.objects[path]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &Object{
		ReadCloser:  io.NopCloser(bytes.NewReader(obj.data)),
		ContentType: obj.contentType,
		Size:        int64(len(obj.data)),
	}, nil
}

func (m *Memory) Exists(_ context.Context, path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[path]
	return ok, nil
}

func (m *Memory) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[path]; !ok {
		return ErrNotFound
	}
	delete(m.objects, path)
	return nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []Entry
	for p, obj := range m.objects {
		if strings.HasPrefix(p, prefix) {
			entries = append(entries, Entry{Path: p, UploadedAt: obj.uploadedAt})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (m *Memory) URL(path string) string {
	return m.links.URL(path)
}

// Writes counts successful Put calls.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Bytes returns a copy of the stored content.
func (m *Memory) Bytes(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[path]
	if !ok {
		return nil, false
	}
	return bytes.Clone(obj.data), true
}
