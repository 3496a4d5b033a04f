package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"

	"secret_santa/internal/models"
	"secret_santa/internal/repository"
)

type AdminService struct {
	repos     *repository.Repositories
	auth      *AuthService
	publisher Publisher
}

func NewAdminService(repos *repository.Repositories, auth *AuthService, publisher Publisher) *AdminService {
	return &AdminService{repos: repos, auth: auth, publisher: publisher}
}

type Summary struct {
	Participants int64 `json:"participants"`
	Assignments  int64 `json:"assignments"`
}

type ResetResult struct {
	AssignmentsDeleted int64 `json:"assignments_deleted"`
	FlagsCleared       int64 `json:"flags_cleared"`
}

func (s *AdminService) publish(eventType, participantID string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(Event{Type: eventType, ParticipantID: participantID, Time: time.Now()})
}

// ListParticipants 回傳所有參與者（含明文密碼），依名稱排序
func (s *AdminService) ListParticipants(ctx context.Context) ([]models.Participant, error) {
	participants, err := s.repos.Participant.FindAll(ctx)
	if err != nil {
		return nil, storeError("list participants", err)
	}
	return participants, nil
}

// ListAssignmentsWithNames 回傳所有抽籤結果與雙方名稱，依抽籤者名稱排序
func (s *AdminService) ListAssignmentsWithNames(ctx context.Context) ([]models.AssignmentView, error) {
	views, err := s.repos.Assignment.ListWithNames(ctx)
	if err != nil {
		return nil, storeError("list assignments", err)
	}
	return views, nil
}

func (s *AdminService) Summary(ctx context.Context) (*Summary, error) {
	participants, err := s.repos.Participant.Count(ctx)
	if err != nil {
		return nil, storeError("count participants", err)
	}
	assignments, err := s.repos.Assignment.Count(ctx)
	if err != nil {
		return nil, storeError("count assignments", err)
	}
	return &Summary{Participants: participants, Assignments: assignments}, nil
}

// DeleteParticipant 刪除參與者以及所有與他有關的抽籤結果。
// 如果他是別人抽到的對象，那位抽籤者的 has_drawn 會被清除，可以重新抽籤。
func (s *AdminService) DeleteParticipant(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrParticipantNotFound
	}

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		removed, err := tx.Assignment.DeleteInvolving(ctx, id)
		if err != nil {
			return err
		}
		for _, a := range removed {
			if a.DraweeID == id {
				if err := tx.Participant.SetDrawn(ctx, a.DrawerID, false); err != nil {
					return err
				}
			}
		}
		return tx.Participant.Delete(ctx, id)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return ErrParticipantNotFound
	}
	if err != nil {
		return storeError("delete participant", err)
	}

	logger.Infof("participant deleted participant_id=%s", id)
	s.publish(EventParticipantDeleted, id)
	return nil
}

// ResetAll 在同一個交易中刪除所有抽籤結果並清除所有 has_drawn
func (s *AdminService) ResetAll(ctx context.Context) (*ResetResult, error) {
	var result ResetResult
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		deleted, err := tx.Assignment.DeleteAll(ctx)
		if err != nil {
			return err
		}
		cleared, err := tx.Participant.ResetDrawn(ctx)
		if err != nil {
			return err
		}
		result = ResetResult{AssignmentsDeleted: deleted, FlagsCleared: cleared}
		return nil
	})
	if err != nil {
		return nil, storeError("reset", err)
	}

	logger.Infof("ledger reset assignments_deleted=%d flags_cleared=%d", result.AssignmentsDeleted, result.FlagsCleared)
	s.publish(EventLedgerReset, "")
	return &result, nil
}

// AddParticipant 新增一位參與者，密碼不可與其他人或管理員密碼相同。
// 密碼原樣保存，登入時必須逐字相同。
func (s *AdminService) AddParticipant(ctx context.Context, name, secret string) (*models.Participant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidParticipant)
	}
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: secret is required", ErrInvalidParticipant)
	}
	if s.auth != nil && s.auth.IsAdmin(secret) {
		return nil, fmt.Errorf("%w: secret is reserved", ErrInvalidParticipant)
	}

	p := &models.Participant{Name: name, Secret: secret}
	err := s.repos.Participant.Create(ctx, p)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, fmt.Errorf("%w: secret is already in use", ErrInvalidParticipant)
	}
	if err != nil {
		return nil, storeError("create participant", err)
	}

	logger.Infof("participant added participant_id=%s name=%s", p.ID, p.Name)
	return p, nil
}
