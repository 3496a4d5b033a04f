package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"secret_santa/internal/storage"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrDuplicate  = errors.New("duplicate key")
	ErrConstraint = errors.New("constraint violated")
)

type Repositories struct {
	Participant ParticipantRepository
	Assignment  AssignmentRepository

	txFunc func(ctx context.Context, fn func(repos *Repositories) error) error
}

func NewRepositories(db *storage.PostgresDB) *Repositories {
	return newGormRepositories(db.DB)
}

func newGormRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Participant: NewParticipantRepository(db),
		Assignment:  NewAssignmentRepository(db),
		txFunc: func(ctx context.Context, fn func(repos *Repositories) error) error {
			return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				return fn(newGormRepositories(tx))
			})
		},
	}
}

// Transaction 在同一個交易中執行 fn，fn 回傳錯誤時整個交易回滾
// fn 必須使用傳入的 repos，而不是外層的 Repositories
func (r *Repositories) Transaction(ctx context.Context, fn func(repos *Repositories) error) error {
	return r.txFunc(ctx, fn)
}

// translate 把 gorm 的錯誤轉成這個套件的 sentinel errors
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	case errors.Is(err, gorm.ErrCheckConstraintViolated), errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %v", ErrConstraint, err)
	}
	return err
}
