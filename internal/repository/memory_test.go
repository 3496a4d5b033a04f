package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"secret_santa/internal/models"
)

func seedParticipants(t *testing.T, repos *Repositories, names ...string) []models.Participant {
	t.Helper()
	ctx := context.Background()
	out := make([]models.Participant, 0, len(names))
	for _, name := range names {
		p := models.Participant{Name: name, Secret: name + "-secret"}
		if err := repos.Participant.Create(ctx, &p); err != nil {
			t.Fatalf("failed to create participant %s: %v", name, err)
		}
		out = append(out, p)
	}
	return out
}

func TestMemoryParticipantConstraints(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	seedParticipants(t, repos, "Charlie", "Alice", "Bob")

	t.Run("duplicate secret is rejected", func(t *testing.T) {
		err := repos.Participant.Create(ctx, &models.Participant{Name: "Mallory", Secret: "Alice-secret"})
		if !errors.Is(err, ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("find all is ordered by name", func(t *testing.T) {
		all, err := repos.Participant.FindAll(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(all) != 3 || all[0].Name != "Alice" || all[1].Name != "Bob" || all[2].Name != "Charlie" {
			t.Fatalf("unexpected order: %+v", all)
		}
	})

	t.Run("find by secret", func(t *testing.T) {
		p, err := repos.Participant.FindBySecret(ctx, "Bob-secret")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Name != "Bob" {
			t.Errorf("expected Bob, got %s", p.Name)
		}
		if _, err := repos.Participant.FindBySecret(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestMemoryAssignmentConstraints(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	p := seedParticipants(t, repos, "A", "B", "C")
	a, b, c := p[0], p[1], p[2]

	if err := repos.Assignment.Create(ctx, &models.Assignment{DrawerID: a.ID, DraweeID: b.ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		in      models.Assignment
		wantErr error
	}{
		{"same drawer twice", models.Assignment{DrawerID: a.ID, DraweeID: c.ID}, ErrDuplicate},
		{"same drawee twice", models.Assignment{DrawerID: c.ID, DraweeID: b.ID}, ErrDuplicate},
		{"self assignment", models.Assignment{DrawerID: c.ID, DraweeID: c.ID}, ErrConstraint},
		{"unknown drawee", models.Assignment{DrawerID: c.ID, DraweeID: "missing"}, ErrConstraint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.in
			if err := repos.Assignment.Create(ctx, &in); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	n, err := repos.Assignment.Count(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 assignment, got %d (%v)", n, err)
	}
}

func TestMemoryConcurrentDraweeRace(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	names := []string{"X", "D1", "D2", "D3", "D4", "D5", "D6", "D7", "D8"}
	p := seedParticipants(t, repos, names...)
	target := p[0]

	var successes atomic.Int32
	var wg sync.WaitGroup
	for _, drawer := range p[1:] {
		wg.Add(1)
		go func(drawerID string) {
			defer wg.Done()
			err := repos.Assignment.Create(ctx, &models.Assignment{DrawerID: drawerID, DraweeID: target.ID})
			if err == nil {
				successes.Add(1)
			} else if !errors.Is(err, ErrDuplicate) {
				t.Errorf("unexpected error: %v", err)
			}
		}(drawer.ID)
	}
	wg.Wait()

	if successes.Load() != 1 {
		t.Fatalf("expected exactly one winner for the contested drawee, got %d", successes.Load())
	}
}

func TestMemoryTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	p := seedParticipants(t, repos, "A", "B")

	boom := errors.New("boom")
	err := repos.Transaction(ctx, func(tx *Repositories) error {
		if err := tx.Assignment.Create(ctx, &models.Assignment{DrawerID: p[0].ID, DraweeID: p[1].ID}); err != nil {
			return err
		}
		if err := tx.Participant.SetDrawn(ctx, p[0].ID, true); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if n, _ := repos.Assignment.Count(ctx); n != 0 {
		t.Errorf("expected rollback to remove the assignment, got %d", n)
	}
	got, _ := repos.Participant.FindByID(ctx, p[0].ID)
	if got.HasDrawn {
		t.Error("expected rollback to restore has_drawn=false")
	}
}

func TestMemoryDeleteInvolvingAndListWithNames(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	p := seedParticipants(t, repos, "Ann", "Ben", "Cat")
	ann, ben, cat := p[0], p[1], p[2]

	for _, a := range []models.Assignment{
		{DrawerID: cat.ID, DraweeID: ann.ID},
		{DrawerID: ann.ID, DraweeID: ben.ID},
		{DrawerID: ben.ID, DraweeID: cat.ID},
	} {
		a := a
		if err := repos.Assignment.Create(ctx, &a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := repos.Participant.SetDrawn(ctx, ann.ID, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	views, err := repos.Assignment.ListWithNames(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(views) != 3 || views[0].DrawerName != "Ann" || views[0].DraweeName != "Ben" || !views[0].HasViewed {
		t.Fatalf("unexpected views: %+v", views)
	}
	if views[1].HasViewed {
		t.Errorf("expected Ben has_viewed=false, got true")
	}

	deleted, err := repos.Assignment.DeleteInvolving(ctx, ben.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deleted) != 2 {
		t.Fatalf("expected 2 deleted rows, got %d", len(deleted))
	}
	if n, _ := repos.Assignment.Count(ctx); n != 1 {
		t.Errorf("expected 1 remaining assignment, got %d", n)
	}
}
