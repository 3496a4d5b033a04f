package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"secret_santa/internal/models"
	"secret_santa/internal/repository"
)

func TestDrawService_ThreeParticipantScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DrawOptions{Rand: &scriptedRand{picks: []int{0, 1, 0}}}, "A", "B", "C")

	steps := []struct {
		drawer   string
		wantPool []string
		wantPick string
	}{
		{"A", []string{"B", "C"}, "B"},
		{"B", []string{"A", "C"}, "C"},
		{"C", []string{"A"}, "A"},
	}

	for _, step := range steps {
		pool, err := f.draw.EligiblePool(ctx, f.id(step.drawer))
		if err != nil {
			t.Fatalf("%s: unexpected pool error: %v", step.drawer, err)
		}
		if got := poolNames(pool); !slices.Equal(got, step.wantPool) {
			t.Fatalf("%s: expected pool %v, got %v", step.drawer, step.wantPool, got)
		}

		result, err := f.draw.PerformDraw(ctx, f.id(step.drawer))
		if err != nil {
			t.Fatalf("%s: unexpected draw error: %v", step.drawer, err)
		}
		if result.Drawee.Name != step.wantPick {
			t.Fatalf("%s: expected to draw %s, got %s", step.drawer, step.wantPick, result.Drawee.Name)
		}
		if result.Assignment.DrawerID == result.Assignment.DraweeID {
			t.Fatalf("%s: self assignment committed", step.drawer)
		}

		p, err := f.repos.Participant.FindByID(ctx, f.id(step.drawer))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !p.HasDrawn {
			t.Errorf("%s: expected has_drawn=true after commit", step.drawer)
		}
	}

	views, err := f.repos.Assignment.ListWithNames(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := make([]string, 0, len(views))
	for _, v := range views {
		got = append(got, v.DrawerName+"->"+v.DraweeName)
	}
	want := []string{"A->B", "B->C", "C->A"}
	if !slices.Equal(got, want) {
		t.Errorf("expected ledger %v, got %v", want, got)
	}

	types := f.publisher.types()
	if len(types) != 3 || types[0] != EventAssignmentCommitted {
		t.Errorf("expected 3 assignment events, got %v", types)
	}
}

func TestDrawService_ExhaustedPool(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DrawOptions{}, "A", "B", "C")
	f.mustCommit(t, "A", "B")
	f.mustCommit(t, "B", "A")

	_, err := f.draw.PerformDraw(ctx, f.id("C"))
	if !errors.Is(err, ErrExhaustedPool) {
		t.Fatalf("expected ErrExhaustedPool, got %v", err)
	}

	state, err := f.draw.GetDrawState(ctx, f.id("C"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Status != DrawStatusNotDrawn || state.PoolSize != 0 {
		t.Errorf("expected not_drawn with empty pool, got %+v", state)
	}

	if _, err := f.draw.PickCandidate(nil); !errors.Is(err, ErrExhaustedPool) {
		t.Errorf("expected ErrExhaustedPool from empty selection, got %v", err)
	}
}

func TestDrawService_PoolShrinksMonotonically(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DrawOptions{}, "A", "B", "C", "D", "E")
	f.mustCommit(t, "A", "C")

	for _, name := range []string{"B", "D", "E"} {
		pool, err := f.draw.EligiblePool(ctx, f.id(name))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, p := range pool {
			if p.Name == "C" {
				t.Errorf("%s: already drawn C still in pool %v", name, poolNames(pool))
			}
			if p.Name == name {
				t.Errorf("%s: own name in pool %v", name, poolNames(pool))
			}
		}
	}
}

func TestDrawService_CommitRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DrawOptions{}, "A", "B", "C")

	t.Run("self assignment", func(t *testing.T) {
		if _, err := f.draw.Commit(ctx, f.id("A"), f.id("A")); !errors.Is(err, ErrSelfAssignment) {
			t.Fatalf("expected ErrSelfAssignment, got %v", err)
		}
	})

	t.Run("last candidate race", func(t *testing.T) {
		// A 和 C 拿著同一份過期的名單，都選了 B
		if _, err := f.draw.Commit(ctx, f.id("A"), f.id("B")); err != nil {
			t.Fatalf("expected first commit to succeed, got %v", err)
		}
		if _, err := f.draw.Commit(ctx, f.id("C"), f.id("B")); !errors.Is(err, ErrDrawConflict) {
			t.Fatalf("expected ErrDrawConflict, got %v", err)
		}

		n, _ := f.repos.Assignment.Count(ctx)
		if n != 1 {
			t.Fatalf("expected exactly one assignment, got %d", n)
		}
		c, _ := f.repos.Participant.FindByID(ctx, f.id("C"))
		if c.HasDrawn {
			t.Error("loser must not be marked as drawn")
		}
	})

	t.Run("unknown participant", func(t *testing.T) {
		if _, err := f.draw.PerformDraw(ctx, "not-a-uuid"); !errors.Is(err, ErrParticipantNotFound) {
			t.Errorf("expected ErrParticipantNotFound, got %v", err)
		}
		if _, err := f.draw.GetDrawState(ctx, "00000000-0000-0000-0000-000000000001"); !errors.Is(err, ErrParticipantNotFound) {
			t.Errorf("expected ErrParticipantNotFound, got %v", err)
		}
	})
}

// staleReads 在第一次讀取 drawee 名單之後執行 after，模擬讀取與提交之間有其他人搶先提交
type staleReads struct {
	repository.AssignmentRepository
	once  sync.Once
	after func()
}

func (r *staleReads) DraweeIDs(ctx context.Context) ([]string, error) {
	ids, err := r.AssignmentRepository.DraweeIDs(ctx)
	r.once.Do(r.after)
	return ids, err
}

func TestDrawService_ConflictRetryRecomputesPool(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DrawOptions{MaxAttempts: 3}, "A", "B", "C")
	f.mustCommit(t, "B", "A")

	// C 讀到的名單只有 B，讀完之後 A 搶先抽走 B
	racing := *f.repos
	racing.Assignment = &staleReads{
		AssignmentRepository: f.repos.Assignment,
		after:                func() { f.mustCommit(t, "A", "B") },
	}
	engine := NewDrawService(&racing, nil, DrawOptions{MaxAttempts: 3})

	_, err := engine.PerformDraw(ctx, f.id("C"))
	if !errors.Is(err, ErrExhaustedPool) {
		t.Fatalf("expected retry to observe an exhausted pool, got %v", err)
	}

	views, err := f.repos.Assignment.ListWithNames(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	drawnB := 0
	for _, v := range views {
		if v.DraweeName == "B" {
			drawnB++
		}
	}
	if drawnB != 1 {
		t.Errorf("expected B to be drawn exactly once, got %d", drawnB)
	}
}

func TestDrawService_ConflictRetrySucceeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DrawOptions{}, "D1", "D2", "X")

	racing := *f.repos
	racing.Assignment = &staleReads{
		AssignmentRepository: f.repos.Assignment,
		after:                func() { f.mustCommit(t, "D1", "X") },
	}
	// 第一次選 X（索引 1），衝突後名單只剩 D1
	engine := NewDrawService(&racing, nil, DrawOptions{MaxAttempts: 2, Rand: &scriptedRand{picks: []int{1, 0}}})

	result, err := engine.PerformDraw(ctx, f.id("D2"))
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if result.Drawee.Name != "D1" {
		t.Errorf("expected D1 after retry, got %s", result.Drawee.Name)
	}
}

func TestDrawService_ConcurrentSameDrawer(t *testing.T) {
	ctx := context.Background()
	names := make([]string, 10)
	for i := range names {
		names[i] = fmt.Sprintf("P%02d", i)
	}
	f := newFixture(t, DrawOptions{}, names...)
	drawer := f.id("P00")

	var successes atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.draw.PerformDraw(ctx, drawer)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrAlreadyDrawn), errors.Is(err, ErrDrawConflict):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes.Load() != 1 {
		t.Fatalf("expected exactly one successful draw, got %d", successes.Load())
	}
	n, _ := f.repos.Assignment.Count(ctx)
	if n != 1 {
		t.Fatalf("expected one assignment, got %d", n)
	}

	state, err := f.draw.GetDrawState(ctx, drawer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Status != DrawStatusAssigned || state.Drawee == nil {
		t.Errorf("expected assigned state, got %+v", state)
	}
	if _, err := f.draw.PerformDraw(ctx, drawer); !errors.Is(err, ErrAlreadyDrawn) {
		t.Errorf("expected ErrAlreadyDrawn on a later draw, got %v", err)
	}
}

func TestDrawService_ConcurrentDrawsKeepLedgerConsistent(t *testing.T) {
	ctx := context.Background()
	names := make([]string, 30)
	for i := range names {
		names[i] = fmt.Sprintf("Guide%02d", i)
	}
	f := newFixture(t, DrawOptions{MaxAttempts: 5}, names...)

	var successes atomic.Int32
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.draw.PerformDraw(ctx, id)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrExhaustedPool), errors.Is(err, ErrDrawConflict):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(f.id(name))
	}
	wg.Wait()

	views, err := f.repos.Assignment.ListWithNames(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(views) != int(successes.Load()) {
		t.Fatalf("expected %d assignments, got %d", successes.Load(), len(views))
	}

	drawers := make(map[string]bool)
	drawees := make(map[string]bool)
	for _, v := range views {
		if v.DrawerID == v.DraweeID {
			t.Errorf("self assignment for %s", v.DrawerName)
		}
		if drawers[v.DrawerID] {
			t.Errorf("%s drew more than once", v.DrawerName)
		}
		if drawees[v.DraweeID] {
			t.Errorf("%s was drawn more than once", v.DraweeName)
		}
		if !v.HasViewed {
			t.Errorf("%s committed but has_drawn is false", v.DrawerName)
		}
		drawers[v.DrawerID] = true
		drawees[v.DraweeID] = true
	}
}

func TestDrawService_GetDrawState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DrawOptions{}, "A", "B", "C", "D")

	state, err := f.draw.GetDrawState(ctx, f.id("A"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Status != DrawStatusNotDrawn || state.PoolSize != 3 || state.Drawee != nil {
		t.Fatalf("unexpected state: %+v", state)
	}

	f.mustCommit(t, "A", "C")
	state, err = f.draw.GetDrawState(ctx, f.id("A"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Status != DrawStatusAssigned || state.Drawee == nil || state.Drawee.Name != "C" {
		t.Fatalf("unexpected state: %+v", state)
	}

	state, err = f.draw.GetDrawState(ctx, f.id("B"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.PoolSize != 2 {
		t.Errorf("expected B's pool to be {A, D}, got size %d", state.PoolSize)
	}
}

// hiddenParticipants 讓指定的參與者查不到，模擬抽籤結果指向已不存在的人
type hiddenParticipants struct {
	repository.ParticipantRepository
	hidden string
}

func (r *hiddenParticipants) FindByID(ctx context.Context, id string) (*models.Participant, error) {
	if id == r.hidden {
		return nil, repository.ErrNotFound
	}
	return r.ParticipantRepository.FindByID(ctx, id)
}

func TestDrawService_GetDrawStateMissingDrawee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DrawOptions{}, "A", "B")
	f.mustCommit(t, "A", "B")

	broken := *f.repos
	broken.Participant = &hiddenParticipants{ParticipantRepository: f.repos.Participant, hidden: f.id("B")}
	engine := NewDrawService(&broken, nil, DrawOptions{})

	_, err := engine.GetDrawState(ctx, f.id("A"))
	if !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		t.Errorf("missing drawee must not surface as a store error: %v", err)
	}
}

func TestDrawService_StoreErrorsAreWrapped(t *testing.T) {
	f := newFixture(t, DrawOptions{}, "A", "B")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.draw.EligiblePool(ctx, f.id("A"))
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected *StoreError, got %T (%v)", err, err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected wrapped context.Canceled, got %v", err)
	}
}

var _ Randomizer = (*scriptedRand)(nil)
