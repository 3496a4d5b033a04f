package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"

	"secret_santa/internal/models"
	"secret_santa/internal/repository"
)

// Randomizer 回傳 [0, n) 之間的均勻亂數，*rand.Rand 即滿足此介面
type Randomizer interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// DrawStatus 是抽籤者目前的狀態
type DrawStatus string

const (
	DrawStatusNotDrawn DrawStatus = "not_drawn"
	DrawStatusAssigned DrawStatus = "assigned"
)

// Candidate 是可以公開給抽籤者看的參與者資料（不含密碼）
type Candidate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func candidateOf(p models.Participant) Candidate {
	return Candidate{ID: p.ID, Name: p.Name}
}

type DrawState struct {
	Status   DrawStatus `json:"status"`
	PoolSize int        `json:"pool_size"`
	Drawee   *Candidate `json:"drawee,omitempty"`
}

type DrawResult struct {
	Assignment models.Assignment `json:"assignment"`
	Drawee     Candidate         `json:"drawee"`
}

type DrawOptions struct {
	// MaxAttempts 是 PerformDraw 遇到衝突時最多嘗試的次數（含第一次）
	MaxAttempts    int
	RevealDuration time.Duration
	RevealFrames   int
	// Rand 決定最終結果，nil 時使用 math/rand/v2 的全域來源
	Rand Randomizer
}

type DrawService struct {
	repos     *repository.Repositories
	publisher Publisher
	opts      DrawOptions
	rng       Randomizer
	// spin 只用於動畫畫面，與最終結果無關
	spin Randomizer
}

func NewDrawService(repos *repository.Repositories, publisher Publisher, opts DrawOptions) *DrawService {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.RevealFrames < 1 {
		opts.RevealFrames = 1
	}
	rng := opts.Rand
	if rng == nil {
		rng = globalRand{}
	}
	return &DrawService{
		repos:     repos,
		publisher: publisher,
		opts:      opts,
		rng:       rng,
		spin:      globalRand{},
	}
}

func (s *DrawService) findParticipant(ctx context.Context, id string) (*models.Participant, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrParticipantNotFound
	}
	p, err := s.repos.Participant.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrParticipantNotFound
	}
	if err != nil {
		return nil, storeError("find participant", err)
	}
	return p, nil
}

// existingAssignment 回傳抽籤者已提交的結果，尚未抽籤時回傳 nil, nil
func (s *DrawService) existingAssignment(ctx context.Context, drawerID string) (*models.Assignment, error) {
	a, err := s.repos.Assignment.FindByDrawer(ctx, drawerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("find assignment", err)
	}
	return a, nil
}

// EligiblePool 計算抽籤者目前可以抽的名單：所有人 - 自己 - 已經被抽走的人
// 結果只是讀取當下的快照，提交時仍可能與其他人衝突
func (s *DrawService) EligiblePool(ctx context.Context, drawerID string) ([]models.Participant, error) {
	if _, err := s.findParticipant(ctx, drawerID); err != nil {
		return nil, err
	}

	others, err := s.repos.Participant.FindAllExcept(ctx, drawerID)
	if err != nil {
		return nil, storeError("list participants", err)
	}
	taken, err := s.repos.Assignment.DraweeIDs(ctx)
	if err != nil {
		return nil, storeError("list drawees", err)
	}

	takenSet := make(map[string]struct{}, len(taken))
	for _, id := range taken {
		takenSet[id] = struct{}{}
	}

	pool := make([]models.Participant, 0, len(others))
	for _, p := range others {
		if _, ok := takenSet[p.ID]; !ok {
			pool = append(pool, p)
		}
	}
	return pool, nil
}

// PickCandidate 從名單中均勻地選出一位
func (s *DrawService) PickCandidate(pool []models.Participant) (models.Participant, error) {
	if len(pool) == 0 {
		return models.Participant{}, ErrExhaustedPool
	}
	return pool[s.rng.IntN(len(pool))], nil
}

// Commit 在同一個交易中寫入抽籤結果並標記抽籤者已抽籤
// drawer_id 或 drawee_id 的唯一約束被觸發時回傳 ErrDrawConflict
func (s *DrawService) Commit(ctx context.Context, drawerID, draweeID string) (*models.Assignment, error) {
	if drawerID == draweeID {
		return nil, ErrSelfAssignment
	}

	assignment := &models.Assignment{DrawerID: drawerID, DraweeID: draweeID}
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Assignment.Create(ctx, assignment); err != nil {
			return err
		}
		return tx.Participant.SetDrawn(ctx, drawerID, true)
	})

	switch {
	case err == nil:
	case errors.Is(err, repository.ErrDuplicate):
		logger.Warningf("draw conflict drawer_id=%s drawee_id=%s", drawerID, draweeID)
		return nil, ErrDrawConflict
	case errors.Is(err, repository.ErrConstraint), errors.Is(err, repository.ErrNotFound):
		// 提交期間有人被刪除
		return nil, ErrParticipantNotFound
	default:
		return nil, storeError("commit assignment", err)
	}

	logger.Infof("assignment committed drawer_id=%s assignment_id=%s", drawerID, assignment.ID)
	s.publish(EventAssignmentCommitted, drawerID)
	return assignment, nil
}

func (s *DrawService) publish(eventType, participantID string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(Event{Type: eventType, ParticipantID: participantID, Time: time.Now()})
}

// GetDrawState 回傳抽籤者已抽到的人，或目前可抽名單的大小
func (s *DrawService) GetDrawState(ctx context.Context, participantID string) (*DrawState, error) {
	if _, err := s.findParticipant(ctx, participantID); err != nil {
		return nil, err
	}

	existing, err := s.existingAssignment(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		drawee, err := s.repos.Participant.FindByID(ctx, existing.DraweeID)
		if errors.Is(err, repository.ErrNotFound) {
			// 外鍵會一併刪除抽籤結果，走到這裡代表資料不一致，需要管理員重置
			logger.Errorf("assignment references missing drawee assignment_id=%s drawee_id=%s", existing.ID, existing.DraweeID)
			return nil, ErrParticipantNotFound
		}
		if err != nil {
			return nil, storeError("find drawee", err)
		}
		c := candidateOf(*drawee)
		return &DrawState{Status: DrawStatusAssigned, Drawee: &c}, nil
	}

	pool, err := s.EligiblePool(ctx, participantID)
	if err != nil {
		return nil, err
	}
	return &DrawState{Status: DrawStatusNotDrawn, PoolSize: len(pool)}, nil
}

// PerformDraw 執行完整的抽籤流程，遇到衝突時重新計算名單再試，
// 最多 MaxAttempts 次
func (s *DrawService) PerformDraw(ctx context.Context, drawerID string) (*DrawResult, error) {
	if _, err := s.findParticipant(ctx, drawerID); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		existing, err := s.existingAssignment(ctx, drawerID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrAlreadyDrawn
		}

		pool, err := s.EligiblePool(ctx, drawerID)
		if err != nil {
			return nil, err
		}
		candidate, err := s.PickCandidate(pool)
		if err != nil {
			return nil, err
		}

		assignment, err := s.Commit(ctx, drawerID, candidate.ID)
		if errors.Is(err, ErrDrawConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}
		return &DrawResult{Assignment: *assignment, Drawee: candidateOf(candidate)}, nil
	}

	logger.Warningf("draw gave up after %d attempts drawer_id=%s", s.opts.MaxAttempts, drawerID)
	return nil, lastErr
}
