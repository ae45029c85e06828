// services/rebuild.go
package services

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"campaign-score-system/models"
)

// RebuildReport summarizes a full ledger rebuild.
type RebuildReport struct {
	Records      int `json:"records"`
	ChangedUsers int `json:"changed_users"`
}

// Rebuild regenerates the entire ledger from the reconciled posts: truncate
// the score records, replay every tagged post in external-timestamp order
// under the (mission, user) uniqueness rule, and recompute each user's score
// from scratch. Everything happens in one transaction, so a reader never
// observes a half-rebuilt ledger. Recovery tool for when the audit reports
// drift; not part of the normal pass.
func (l *ScoreLedger) Rebuild(ctx context.Context) (*RebuildReport, error) {
	report := &RebuildReport{}

	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.ScoreRecord{}).Error; err != nil {
			return fmt.Errorf("failed to truncate score records: %w", err)
		}

		var posts []models.Post
		if err := tx.Preload("Mission").
			Where("mission_id IS NOT NULL").
			Order("external_ts ASC").
			Find(&posts).Error; err != nil {
			return fmt.Errorf("failed to load tagged posts: %w", err)
		}

		scores := map[string]int{}
		credited := map[string]bool{}
		for _, post := range posts {
			if post.Mission == nil {
				continue
			}
			key := *post.MissionID + "|" + post.UserID
			if credited[key] {
				continue
			}
			credited[key] = true

			record := models.ScoreRecord{
				PostID:    post.ID,
				UserID:    post.UserID,
				MissionID: *post.MissionID,
			}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("failed to recreate score record for post %s: %w", post.ID, err)
			}
			scores[post.UserID] += l.Table.Points(post.Mission.Difficulty)
			report.Records++
		}

		var users []models.User
		if err := tx.Find(&users).Error; err != nil {
			return fmt.Errorf("failed to load users: %w", err)
		}
		for _, user := range users {
			want := scores[user.ID]
			if want == user.Score {
				continue
			}
			log.Infof("[REBUILD] user %s score %d -> %d", user.Name, user.Score, want)
			if err := tx.Model(&models.User{}).
				Where("id = ?", user.ID).
				UpdateColumn("score", want).Error; err != nil {
				return fmt.Errorf("failed to set score for user %s: %w", user.ID, err)
			}
			report.ChangedUsers++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Infof("[REBUILD] done: %d records, %d users changed", report.Records, report.ChangedUsers)
	return report, nil
}
