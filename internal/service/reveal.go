package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/logger"
)

// RevealFrame 是抽籤動畫中的一格，只用於顯示，不影響最終結果
type RevealFrame struct {
	Index int    `json:"index"`
	Total int    `json:"total"`
	Name  string `json:"name"`
}

// Reveal 執行有動畫的抽籤：先以固定間隔送出 RevealFrames 格隨機名字，
// 再從同一份名單均勻選出最終結果並嘗試提交一次。
//
// 動畫期間 ctx 被取消或 emit 失敗時放棄抽籤，不會寫入任何資料。
// 一旦開始提交，提交會在不受取消影響的 context 上完成。
// 衝突時回傳 ErrDrawConflict，由參與者重新開始。
func (s *DrawService) Reveal(ctx context.Context, drawerID string, emit func(RevealFrame) error) (*DrawResult, error) {
	if _, err := s.findParticipant(ctx, drawerID); err != nil {
		return nil, err
	}
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
	if len(pool) == 0 {
		return nil, ErrExhaustedPool
	}

	frames := s.opts.RevealFrames
	interval := s.opts.RevealDuration / time.Duration(frames)

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for i := 0; i < frames; i++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrRevealAbandoned, ctx.Err())
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRevealAbandoned, err)
		}

		frame := RevealFrame{Index: i + 1, Total: frames, Name: pool[s.spin.IntN(len(pool))].Name}
		if err := emit(frame); err != nil {
			logger.Infof("reveal abandoned drawer_id=%s frame=%d: %v", drawerID, i+1, err)
			return nil, fmt.Errorf("%w: %w", ErrRevealAbandoned, err)
		}
	}

	candidate, err := s.PickCandidate(pool)
	if err != nil {
		return nil, err
	}
	assignment, err := s.Commit(context.WithoutCancel(ctx), drawerID, candidate.ID)
	if err != nil {
		return nil, err
	}
	return &DrawResult{Assignment: *assignment, Drawee: candidateOf(candidate)}, nil
}
