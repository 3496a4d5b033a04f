package repository

import (
	"context"

	"gorm.io/gorm"

	"secret_santa/internal/models"
)

type ParticipantRepository interface {
	Create(ctx context.Context, participant *models.Participant) error
	FindByID(ctx context.Context, id string) (*models.Participant, error)
	FindBySecret(ctx context.Context, secret string) (*models.Participant, error)
	// FindAll 與 FindAllExcept 都依名稱排序
	FindAll(ctx context.Context) ([]models.Participant, error)
	FindAllExcept(ctx context.Context, id string) ([]models.Participant, error)
	SetDrawn(ctx context.Context, id string, drawn bool) error
	ResetDrawn(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

type participantRepository struct {
	db *gorm.DB
}

func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

func (r *participantRepository) Create(ctx context.Context, participant *models.Participant) error {
	return translate(r.db.WithContext(ctx).Create(participant).Error)
}

func (r *participantRepository) FindByID(ctx context.Context, id string) (*models.Participant, error) {
	var participant models.Participant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&participant).Error
	if err != nil {
		return nil, translate(err)
	}
	return &participant, nil
}

func (r *participantRepository) FindBySecret(ctx context.Context, secret string) (*models.Participant, error) {
	var participant models.Participant
	err := r.db.WithContext(ctx).Where("secret = ?", secret).First(&participant).Error
	if err != nil {
		return nil, translate(err)
	}
	return &participant, nil
}

func (r *participantRepository) FindAll(ctx context.Context) ([]models.Participant, error) {
	var participants []models.Participant
	err := r.db.WithContext(ctx).Order("name ASC, created_at ASC, id ASC").Find(&participants).Error
	return participants, translate(err)
}

func (r *participantRepository) FindAllExcept(ctx context.Context, id string) ([]models.Participant, error) {
	var participants []models.Participant
	err := r.db.WithContext(ctx).
		Where("id <> ?", id).
		Order("name ASC, created_at ASC, id ASC").
		Find(&participants).Error
	return participants, translate(err)
}

func (r *participantRepository) SetDrawn(ctx context.Context, id string, drawn bool) error {
	res := r.db.WithContext(ctx).Model(&models.Participant{}).Where("id = ?", id).Update("has_drawn", drawn)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetDrawn 清除所有人的 has_drawn，回傳被更新的筆數
func (r *participantRepository) ResetDrawn(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Participant{}).Where("has_drawn = ?", true).Update("has_drawn", false)
	return res.RowsAffected, translate(res.Error)
}

func (r *participantRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Participant{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *participantRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Participant{}).Count(&count).Error
	return count, translate(err)
}
