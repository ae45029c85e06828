// models/score_record.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScoreRecord is the durable proof that a (mission, user) pair has been
// credited. The composite unique index is the at-most-once guarantee the
// whole reconciliation engine leans on: inserts racing across passes or
// processes collapse into a single row. Created only by the ScoreLedger,
// never updated, destroyed only when its originating post is invalidated.
type ScoreRecord struct {
	ID        string `json:"id" gorm:"primaryKey"`
	PostID    string `json:"post_id" gorm:"index;not null"`
	UserID    string `json:"user_id" gorm:"not null;uniqueIndex:idx_score_records_mission_user"`
	MissionID string `json:"mission_id" gorm:"not null;uniqueIndex:idx_score_records_mission_user"`

	Post    *Post    `json:"-" gorm:"foreignKey:PostID"`
	User    *User    `json:"-" gorm:"foreignKey:UserID"`
	Mission *Mission `json:"-" gorm:"foreignKey:MissionID"`

	CreatedAt time.Time `json:"created_at"`
}

func (r *ScoreRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
