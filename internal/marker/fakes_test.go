package marker

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

// journal records the order of store and blob calls across goroutines.
type journal struct {
	mu    sync.Mutex
	steps []string
}

func (j *journal) add(step string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.steps = append(j.steps, step)
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.steps...)
}

type memoryStore struct {
	j       *journal
	mu      sync.Mutex
	markers map[string]Marker
	order   []string
	next    int
	failGet bool
}

func newMemoryStore(j *journal) *memoryStore {
	return &memoryStore{j: j, markers: map[string]Marker{}}
}

func (s *memoryStore) Create(_ context.Context, m Marker) (Marker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	m.ID = "m-" + string(rune('0'+s.next))
	m.CreatedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m = normalize(m)
	s.markers[m.ID] = m
	s.order = append(s.order, m.ID)
	s.j.add("create")
	return m, nil
}

func (s *memoryStore) Get(_ context.Context, id string) (Marker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return Marker{}, errors.New("read failed")
	}
	m, ok := s.markers[id]
	if !ok {
		return Marker{}, ErrNotFound
	}
	return m, nil
}

func (s *memoryStore) List(_ context.Context) ([]Marker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Marker{}
	for _, id := range s.order {
		out = append(out, s.markers[id])
	}
	return out, nil
}

func (s *memoryStore) AppendReview(_ context.Context, id string, r Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markers[id]
	if !ok {
		return ErrNotFound
	}
	m.Reviews = append(m.Reviews, r)
	s.markers[id] = m
	s.j.add("review")
	return nil
}

func (s *memoryStore) AppendPhotoURLs(_ context.Context, id string, urls []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markers[id]
	if !ok {
		return ErrNotFound
	}
	m.PhotoURLs = append(m.PhotoURLs, urls...)
	s.markers[id] = m
	s.j.add("patch")
	return nil
}

type fakeUploader struct {
	j      *journal
	failOn string
	mu     sync.Mutex
	paths  []string
}

func (u *fakeUploader) Put(_ context.Context, path string, r io.Reader, _ string) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	u.j.add("upload")
	if u.failOn != "" && strings.Contains(path, u.failOn) {
		return "", errors.New("bucket unavailable")
	}
	u.mu.Lock()
	u.paths = append(u.paths, path)
	u.mu.Unlock()
	return "https://files.example/" + path, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
	events [][]byte
}

func (p *fakePublisher) Broadcast(topic string, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, payload)
}

func photo(name, body string) PhotoUpload {
	return PhotoUpload{
		Filename:    name,
		ContentType: "image/jpeg",
		Open:        func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(body)), nil },
	}
}
