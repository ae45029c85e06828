// models/post.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is one reconciled feed item. Identity is the upstream ExternalID.
// MissionID is non-null iff the content matched a known mission code the
// last time the row was persisted. A post whose content changes after it was
// scored is destroyed and recreated rather than patched in place.
type Post struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	ExternalID string    `json:"external_id" gorm:"uniqueIndex;not null"`
	Content    string    `json:"content" gorm:"type:text"`
	PhotoURL   string    `json:"photo_url" gorm:"type:text"`
	Likes      int       `json:"likes" gorm:"default:0"`
	ExternalTS time.Time `json:"external_ts" gorm:"index"`

	MissionID *string  `json:"mission_id,omitempty"`
	Mission   *Mission `json:"-" gorm:"foreignKey:MissionID"`

	UserID string `json:"user_id" gorm:"index;not null"`
	User   *User  `json:"-" gorm:"foreignKey:UserID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
