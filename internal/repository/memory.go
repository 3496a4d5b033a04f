package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"secret_santa/internal/models"
)

// memoryStore 是與 postgres schema 有相同約束的記憶體實作
// （secret 唯一、drawer_id 唯一、drawee_id 唯一、不可自抽、外鍵必須存在），只供測試使用
//
// gate 讓交易獨佔整個 store；交易外的操作共用 gate 的讀鎖，再以 mu 互斥
type memoryStore struct {
	gate         sync.RWMutex
	mu           sync.Mutex
	participants map[string]models.Participant
	assignments  map[string]models.Assignment
}

// NewMemoryRepositories 建立一組資料只存在記憶體中的 Repositories
func NewMemoryRepositories() *Repositories {
	s := &memoryStore{
		participants: make(map[string]models.Participant),
		assignments:  make(map[string]models.Assignment),
	}
	return s.repositories(false)
}

func (s *memoryStore) repositories(inTx bool) *Repositories {
	return &Repositories{
		Participant: &memoryParticipantRepository{store: s, inTx: inTx},
		Assignment:  &memoryAssignmentRepository{store: s, inTx: inTx},
		txFunc: func(ctx context.Context, fn func(repos *Repositories) error) error {
			return s.transaction(ctx, inTx, fn)
		},
	}
}

func (s *memoryStore) lock(inTx bool) func() {
	if inTx {
		s.mu.Lock()
		return s.mu.Unlock
	}
	s.gate.RLock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.gate.RUnlock()
	}
}

func (s *memoryStore) transaction(ctx context.Context, nested bool, fn func(repos *Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !nested {
		s.gate.Lock()
		defer s.gate.Unlock()
	}

	s.mu.Lock()
	participants, assignments := cloneMap(s.participants), cloneMap(s.assignments)
	s.mu.Unlock()

	if err := fn(s.repositories(true)); err != nil {
		s.mu.Lock()
		s.participants, s.assignments = participants, assignments
		s.mu.Unlock()
		return err
	}
	return nil
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortParticipants(participants []models.Participant) {
	slices.SortFunc(participants, func(a, b models.Participant) int {
		return cmp.Or(
			cmp.Compare(a.Name, b.Name),
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.ID, b.ID),
		)
	})
}

type memoryParticipantRepository struct {
	store *memoryStore
	inTx  bool
}

func (r *memoryParticipantRepository) Create(ctx context.Context, participant *models.Participant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer r.store.lock(r.inTx)()

	if participant.ID == "" {
		participant.ID = uuid.NewString()
	}
	if participant.CreatedAt.IsZero() {
		participant.CreatedAt = time.Now()
	}
	if _, exists := r.store.participants[participant.ID]; exists {
		return fmt.Errorf("%w: participants.id", ErrDuplicate)
	}
	for _, p := range r.store.participants {
		if p.Secret == participant.Secret {
			return fmt.Errorf("%w: participants.secret", ErrDuplicate)
		}
	}
	r.store.participants[participant.ID] = *participant
	return nil
}

func (r *memoryParticipantRepository) FindByID(ctx context.Context, id string) (*models.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.store.lock(r.inTx)()

	p, ok := r.store.participants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *memoryParticipantRepository) FindBySecret(ctx context.Context, secret string) (*models.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.store.lock(r.inTx)()

	for _, p := range r.store.participants {
		if p.Secret == secret {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryParticipantRepository) FindAll(ctx context.Context) ([]models.Participant, error) {
	return r.FindAllExcept(ctx, "")
}

func (r *memoryParticipantRepository) FindAllExcept(ctx context.Context, id string) ([]models.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.store.lock(r.inTx)()

	participants := make([]models.Participant, 0, len(r.store.participants))
	for _, p := range r.store.participants {
		if p.ID != id {
			participants = append(participants, p)
		}
	}
	sortParticipants(participants)
	return participants, nil
}

func (r *memoryParticipantRepository) SetDrawn(ctx context.Context, id string, drawn bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer r.store.lock(r.inTx)()

	p, ok := r.store.participants[id]
	if !ok {
		return ErrNotFound
	}
	p.HasDrawn = drawn
	r.store.participants[id] = p
	return nil
}

func (r *memoryParticipantRepository) ResetDrawn(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	defer r.store.lock(r.inTx)()

	var updated int64
	for id, p := range r.store.participants {
		if p.HasDrawn {
			p.HasDrawn = false
			r.store.participants[id] = p
			updated++
		}
	}
	return updated, nil
}

// Delete 與 SQL migration 的 ON DELETE CASCADE 一致，會一併刪除相關的抽籤結果
func (r *memoryParticipantRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer r.store.lock(r.inTx)()

	if _, ok := r.store.participants[id]; !ok {
		return ErrNotFound
	}
	delete(r.store.participants, id)
	for aid, a := range r.store.assignments {
		if a.DrawerID == id || a.DraweeID == id {
			delete(r.store.assignments, aid)
		}
	}
	return nil
}

func (r *memoryParticipantRepository) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	defer r.store.lock(r.inTx)()
	return int64(len(r.store.participants)), nil
}

type memoryAssignmentRepository struct {
	store *memoryStore
	inTx  bool
}

func (r *memoryAssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer r.store.lock(r.inTx)()

	if assignment.DrawerID == assignment.DraweeID {
		return fmt.Errorf("%w: chk_assignments_not_self", ErrConstraint)
	}
	if _, ok := r.store.participants[assignment.DrawerID]; !ok {
		return fmt.Errorf("%w: assignments.drawer_id references unknown participant", ErrConstraint)
	}
	if _, ok := r.store.participants[assignment.DraweeID]; !ok {
		return fmt.Errorf("%w: assignments.drawee_id references unknown participant", ErrConstraint)
	}
	for _, a := range r.store.assignments {
		if a.DrawerID == assignment.DrawerID {
			return fmt.Errorf("%w: idx_assignments_drawer", ErrDuplicate)
		}
		if a.DraweeID == assignment.DraweeID {
			return fmt.Errorf("%w: idx_assignments_drawee", ErrDuplicate)
		}
	}

	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now()
	}
	r.store.assignments[assignment.ID] = *assignment
	return nil
}

func (r *memoryAssignmentRepository) FindByDrawer(ctx context.Context, drawerID string) (*models.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.store.lock(r.inTx)()

	for _, a := range r.store.assignments {
		if a.DrawerID == drawerID {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryAssignmentRepository) DraweeIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.store.lock(r.inTx)()

	ids := make([]string, 0, len(r.store.assignments))
	for _, a := range r.store.assignments {
		ids = append(ids, a.DraweeID)
	}
	return ids, nil
}

func (r *memoryAssignmentRepository) ListWithNames(ctx context.Context) ([]models.AssignmentView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.store.lock(r.inTx)()

	views := make([]models.AssignmentView, 0, len(r.store.assignments))
	for _, a := range r.store.assignments {
		drawer, ok := r.store.participants[a.DrawerID]
		if !ok {
			continue
		}
		drawee, ok := r.store.participants[a.DraweeID]
		if !ok {
			continue
		}
		views = append(views, models.AssignmentView{
			ID:         a.ID,
			DrawerID:   a.DrawerID,
			DrawerName: drawer.Name,
			DraweeID:   a.DraweeID,
			DraweeName: drawee.Name,
			HasViewed:  drawer.HasDrawn,
			CreatedAt:  a.CreatedAt,
		})
	}
	slices.SortFunc(views, func(a, b models.AssignmentView) int {
		return cmp.Or(
			cmp.Compare(a.DrawerName, b.DrawerName),
			a.CreatedAt.Compare(b.CreatedAt),
		)
	})
	return views, nil
}

func (r *memoryAssignmentRepository) DeleteInvolving(ctx context.Context, participantID string) ([]models.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.store.lock(r.inTx)()

	var deleted []models.Assignment
	for id, a := range r.store.assignments {
		if a.DrawerID == participantID || a.DraweeID == participantID {
			deleted = append(deleted, a)
			delete(r.store.assignments, id)
		}
	}
	return deleted, nil
}

func (r *memoryAssignmentRepository) DeleteAll(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	defer r.store.lock(r.inTx)()

	n := int64(len(r.store.assignments))
	r.store.assignments = make(map[string]models.Assignment)
	return n, nil
}

func (r *memoryAssignmentRepository) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	defer r.store.lock(r.inTx)()
	return int64(len(r.store.assignments)), nil
}
