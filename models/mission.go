// models/mission.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Mission is one campaign task. The catalog is imported by an external tool;
// this service treats missions as read-only and resolves them by Code (the
// short tag users put in their post hashtags).
type Mission struct {
	ID          string `json:"id" gorm:"primaryKey"`
	Code        string `json:"code" gorm:"uniqueIndex;not null"`
	Title       string `json:"title" gorm:"type:text"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Content     string `json:"content" gorm:"type:text"`
	Difficulty  int    `json:"difficulty" gorm:"default:1"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Mission) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
