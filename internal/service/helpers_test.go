package service

import (
	"context"
	"sync"
	"testing"

	"secret_santa/internal/models"
	"secret_santa/internal/repository"
)

// scriptedRand 依序回傳預先排好的索引，用完後一律回傳 0
type scriptedRand struct {
	mu    sync.Mutex
	picks []int
}

func (r *scriptedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.picks) == 0 {
		return 0
	}
	next := r.picks[0]
	r.picks = r.picks[1:]
	return next % n
}

// recordingPublisher 記錄所有被發布的事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	repos     *repository.Repositories
	draw      *DrawService
	publisher *recordingPublisher
	byName    map[string]models.Participant
}

func newFixture(t *testing.T, opts DrawOptions, names ...string) *fixture {
	t.Helper()

	repos := repository.NewMemoryRepositories()
	f := &fixture{
		repos:     repos,
		publisher: &recordingPublisher{},
		byName:    make(map[string]models.Participant),
	}
	for _, name := range names {
		p := models.Participant{Name: name, Secret: name + "-secret"}
		if err := repos.Participant.Create(context.Background(), &p); err != nil {
			t.Fatalf("failed to create participant %s: %v", name, err)
		}
		f.byName[name] = p
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}
	f.draw = NewDrawService(repos, f.publisher, opts)
	return f
}

func (f *fixture) id(name string) string {
	return f.byName[name].ID
}

func (f *fixture) mustCommit(t *testing.T, drawer, drawee string) {
	t.Helper()
	if _, err := f.draw.Commit(context.Background(), f.id(drawer), f.id(drawee)); err != nil {
		t.Fatalf("commit %s -> %s failed: %v", drawer, drawee, err)
	}
}

func poolNames(pool []models.Participant) []string {
	names := make([]string, 0, len(pool))
	for _, p := range pool {
		names = append(names, p.Name)
	}
	return names
}
