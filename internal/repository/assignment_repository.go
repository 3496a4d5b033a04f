package repository

import (
	"context"

	"gorm.io/gorm"

	"secret_santa/internal/models"
)

type AssignmentRepository interface {
	// Create 在 drawer_id 或 drawee_id 重複時回傳 ErrDuplicate
	Create(ctx context.Context, assignment *models.Assignment) error
	FindByDrawer(ctx context.Context, drawerID string) (*models.Assignment, error)
	DraweeIDs(ctx context.Context) ([]string, error)
	ListWithNames(ctx context.Context) ([]models.AssignmentView, error)
	DeleteInvolving(ctx context.Context, participantID string) ([]models.Assignment, error)
	DeleteAll(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type assignmentRepository struct {
	db *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	return translate(r.db.WithContext(ctx).Create(assignment).Error)
}

func (r *assignmentRepository) FindByDrawer(ctx context.Context, drawerID string) (*models.Assignment, error) {
	var assignment models.Assignment
	err := r.db.WithContext(ctx).Where("drawer_id = ?", drawerID).First(&assignment).Error
	if err != nil {
		return nil, translate(err)
	}
	return &assignment, nil
}

func (r *assignmentRepository) DraweeIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Assignment{}).Pluck("drawee_id", &ids).Error
	return ids, translate(err)
}

// ListWithNames 用一次 join 查出所有抽籤結果與雙方名稱，依抽籤者名稱排序
func (r *assignmentRepository) ListWithNames(ctx context.Context) ([]models.AssignmentView, error) {
	var views []models.AssignmentView
	err := r.db.WithContext(ctx).
		Table("assignments AS a").
		Select(`a.id AS id,
			a.drawer_id AS drawer_id,
			drawer.name AS drawer_name,
			a.drawee_id AS drawee_id,
			drawee.name AS drawee_name,
			drawer.has_drawn AS has_viewed,
			a.created_at AS created_at`).
		Joins("JOIN participants AS drawer ON drawer.id = a.drawer_id").
		Joins("JOIN participants AS drawee ON drawee.id = a.drawee_id").
		Order("drawer.name ASC, a.created_at ASC").
		Scan(&views).Error
	return views, translate(err)
}

// DeleteInvolving 刪除所有以該參與者為抽籤者或被抽中者的結果，並回傳被刪除的資料
func (r *assignmentRepository) DeleteInvolving(ctx context.Context, participantID string) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := r.db.WithContext(ctx).
		Where("drawer_id = ? OR drawee_id = ?", participantID, participantID).
		Find(&assignments).Error
	if err != nil {
		return nil, translate(err)
	}
	if len(assignments) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.ID)
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Assignment{}).Error; err != nil {
		return nil, translate(err)
	}
	return assignments, nil
}

func (r *assignmentRepository) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("1 = 1").Delete(&models.Assignment{})
	return res.RowsAffected, translate(res.Error)
}

func (r *assignmentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Assignment{}).Count(&count).Error
	return count, translate(err)
}
