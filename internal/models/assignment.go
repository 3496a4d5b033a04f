package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Assignment 表示一筆已提交的抽籤結果（抽籤者 -> 被抽中者）
// drawer_id 與 drawee_id 各自唯一，由資料庫負責保證
type Assignment struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	DrawerID  string    `gorm:"type:uuid;not null;uniqueIndex:idx_assignments_drawer;check:chk_assignments_not_self,drawer_id <> drawee_id" json:"drawer_id"`
	DraweeID  string    `gorm:"type:uuid;not null;uniqueIndex:idx_assignments_drawee" json:"drawee_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`

	// 只用來讓 AutoMigrate 建立外鍵，刪除參與者時一併刪除相關的抽籤結果
	Drawer *Participant `gorm:"foreignKey:DrawerID;constraint:OnDelete:CASCADE" json:"-"`
	Drawee *Participant `gorm:"foreignKey:DraweeID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Assignment) TableName() string {
	return "assignments"
}

func (a *Assignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// AssignmentView 是管理介面使用的抽籤結果，附帶雙方的顯示名稱
type AssignmentView struct {
	ID         string    `json:"id"`
	DrawerID   string    `json:"drawer_id"`
	DrawerName string    `json:"drawer_name"`
	DraweeID   string    `json:"drawee_id"`
	DraweeName string    `json:"drawee_name"`
	HasViewed  bool      `json:"has_viewed"` // 抽籤者的 has_drawn
	CreatedAt  time.Time `json:"created_at"`
}
