package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Participant 表示一位可以參與抽籤的人
type Participant struct {
	ID   string `gorm:"type:uuid;primaryKey" json:"id"`
	Name string `gorm:"not null" json:"name"` // 顯示名稱，不保證唯一
	// Secret 是登入用的共用密碼，以明文保存，管理員可以查看
	Secret string `gorm:"uniqueIndex;not null" json:"secret"`
	// HasDrawn 在成功抽籤後設為 true，只有管理員重置會清除
	HasDrawn  bool      `gorm:"not null;default:false" json:"has_drawn"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Participant) TableName() string {
	return "participants"
}

// BeforeCreate 在寫入前補上 UUID
func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
