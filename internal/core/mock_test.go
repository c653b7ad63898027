package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// mockInference records calls and tracks how many run at once
type mockInference struct {
	mu        sync.Mutex
	calls     []string
	active    int32
	maxActive int32
	delay     time.Duration
	respond   func(image []byte) (string, error)
}

func (m *mockInference) Infer(ctx context.Context, image []byte, prompt string) (string, error) {
	n := atomic.AddInt32(&m.active, 1)
	defer atomic.AddInt32(&m.active, -1)
	for {
		peak := atomic.LoadInt32(&m.maxActive)
		if n <= peak || atomic.CompareAndSwapInt32(&m.maxActive, peak, n) {
			break
		}
	}

	m.mu.Lock()
	m.calls = append(m.calls, string(image))
	m.mu.Unlock()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.respond != nil {
		return m.respond(image)
	}
	return "No = 10", nil
}

func (m *mockInference) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// mockStore is an in-memory VerdictStore with injectable failures
type mockStore struct {
	mu            sync.Mutex
	entries       map[string]string
	getAllCalls   int
	putErr        error
	getAllErr     error
	removeManyErr error
	removeErr     map[string]error
}

func newMockStore(entries map[string]string) *mockStore {
	if entries == nil {
		entries = make(map[string]string)
	}
	return &mockStore{entries: entries, removeErr: make(map[string]error)}
}

func (s *mockStore) Put(ctx context.Context, imageID, rawText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return &StoreError{Op: "put", Err: s.putErr}
	}
	s.entries[imageID] = rawText
	return nil
}

func (s *mockStore) Has(ctx context.Context, imageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[imageID]
	return ok, nil
}

func (s *mockStore) GetAll(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getAllCalls++
	if s.getAllErr != nil {
		return nil, &StoreError{Op: "get all", Err: s.getAllErr}
	}
	out := make(map[string]string, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out, nil
}

func (s *mockStore) Remove(ctx context.Context, imageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.removeErr[imageID]; err != nil {
		return &StoreError{Op: "remove", Err: err}
	}
	delete(s.entries, imageID)
	return nil
}

func (s *mockStore) RemoveMany(ctx context.Context, imageIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeManyErr != nil {
		return &StoreError{Op: "remove many", Err: s.removeManyErr}
	}
	for _, id := range imageIDs {
		delete(s.entries, id)
	}
	return nil
}

func (s *mockStore) Close() error {
	return nil
}

func (s *mockStore) Get(imageID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.entries[imageID]
	return raw, ok
}

func (s *mockStore) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedIDs(s.entries)
}

// mockImages is an in-memory ImageSource. Image contents are the identifier.
type mockImages struct {
	mu        sync.Mutex
	images    map[string]ImageInfo
	listErr   error
	removeErr map[string]error
}

func newMockImages(images ...ImageInfo) *mockImages {
	m := &mockImages{images: make(map[string]ImageInfo), removeErr: make(map[string]error)}
	for _, img := range images {
		m.images[img.ID] = img
	}
	return m
}

func (m *mockImages) List(ctx context.Context) ([]ImageInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]ImageInfo, 0, len(m.images))
	for _, img := range m.images {
		out = append(out, img)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockImages) Read(ctx context.Context, imageID string) ([]byte, error) {
	if err := ValidateImageID(imageID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.images[imageID]; !ok {
		return nil, ErrImageNotFound
	}
	return []byte(imageID), nil
}

func (m *mockImages) Remove(ctx context.Context, imageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.removeErr[imageID]; err != nil {
		return err
	}
	if _, ok := m.images[imageID]; !ok {
		return ErrImageNotFound
	}
	delete(m.images, imageID)
	return nil
}

func (m *mockImages) Add(img ImageInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[img.ID] = img
}

func (m *mockImages) Watch(ctx context.Context) (<-chan struct{}, error) {
	return nil, nil
}

func (m *mockImages) Has(imageID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.images[imageID]
	return ok
}

// hookedImages runs afterList once, after the listing was taken but before it is returned
type hookedImages struct {
	*mockImages
	afterList func()
}

func (h *hookedImages) List(ctx context.Context) ([]ImageInfo, error) {
	images, err := h.mockImages.List(ctx)
	if hook := h.afterList; hook != nil {
		h.afterList = nil
		hook()
	}
	return images, err
}

// recordingSink keeps every published verdict
type recordingSink struct {
	mu       sync.Mutex
	verdicts []*Verdict
	panics   bool
}

func (s *recordingSink) Name() string {
	return "recording"
}

func (s *recordingSink) Publish(ctx context.Context, verdict *Verdict) {
	if s.panics {
		panic("sink exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdicts = append(s.verdicts, verdict)
}

func (s *recordingSink) Verdicts() []*Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Verdict(nil), s.verdicts...)
}

var errBoom = errors.New("boom")

func imageAt(id string, age time.Duration) ImageInfo {
	return ImageInfo{ID: id, ModTime: time.Now().Add(-age), Size: 1}
}
