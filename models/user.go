// models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// User is a local mirror of a feed author, created lazily the first time one
// of their posts is seen (or provisioned explicitly). Name/avatar only work
// as a cache of the upstream profile; Score is authoritative only after a
// ledger pass and is mutated by the ScoreLedger alone.
type User struct {
	ID         string `json:"id" gorm:"primaryKey"`
	ExternalID string `json:"external_id" gorm:"uniqueIndex;not null"`
	StudentID  string `json:"student_id,omitempty"`
	Name       string `json:"name"`
	Avatar     string `json:"avatar"`
	Score      int    `json:"score" gorm:"default:0;index"`
	Confirmed  bool   `json:"confirmed" gorm:"default:false"`
	Disabled   bool   `json:"disabled" gorm:"default:false"`

	TeamID *string `json:"team_id,omitempty"`
	Team   *Team   `json:"-" gorm:"foreignKey:TeamID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Team groups users for team-level rankings. Rosters are owned by an
// external import tool; this service only reads the association.
type Team struct {
	ID   string `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"not null"`
	Slug string `json:"slug" gorm:"uniqueIndex"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *Team) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Slug == "" {
		t.Slug = slug.Make(t.Name)
	}
	return nil
}
