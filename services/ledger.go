// services/ledger.go
package services

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"campaign-score-system/models"
)

// ScoreLedger is the single authority on "already credited". It converts a
// batch of score candidates into ScoreRecord rows under the (mission, user)
// uniqueness invariant and applies the net point delta to each affected user
// in the same transaction, so a crash can never separate the two.
type ScoreLedger struct {
	DB    *gorm.DB
	Table ScoreTable
}

func NewScoreLedger(db *gorm.DB, table ScoreTable) *ScoreLedger {
	return &ScoreLedger{DB: db, Table: table}
}

// Apply commits one batch of candidates. Duplicates — within the batch,
// across passes, or raced by another process — are absorbed silently by the
// conflict-ignoring insert; only rows that actually landed contribute points.
// Returns the number of new score records created.
func (l *ScoreLedger) Apply(ctx context.Context, batch []ScoreCandidate) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	created := 0
	missionCache := map[string]*models.Mission{}

	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deltas := map[string]int{}

		for _, cand := range batch {
			record := models.ScoreRecord{
				PostID:    cand.PostID,
				UserID:    cand.UserID,
				MissionID: cand.MissionID,
			}
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "mission_id"}, {Name: "user_id"}},
				DoNothing: true,
			}).Create(&record)
			if res.Error != nil {
				return fmt.Errorf("failed to create score record (mission=%s user=%s): %w", cand.MissionID, cand.UserID, res.Error)
			}
			if res.RowsAffected == 0 {
				// already credited
				log.Debugf("[LEDGER] duplicate credit discarded (mission=%s user=%s)", cand.MissionID, cand.UserID)
				continue
			}

			mission, ok := missionCache[cand.MissionID]
			if !ok {
				mission = &models.Mission{}
				if err := tx.First(mission, "id = ?", cand.MissionID).Error; err != nil {
					return fmt.Errorf("failed to load mission %s: %w", cand.MissionID, err)
				}
				missionCache[cand.MissionID] = mission
			}

			deltas[cand.UserID] += l.Table.Points(mission.Difficulty)
			created++
		}

		for userID, delta := range deltas {
			if delta == 0 {
				continue
			}
			if err := tx.Model(&models.User{}).
				Where("id = ?", userID).
				UpdateColumn("score", gorm.Expr("score + ?", delta)).Error; err != nil {
				return fmt.Errorf("failed to apply score delta %+d to user %s: %w", delta, userID, err)
			}
			log.Infof("[LEDGER] user %s score %+d", userID, delta)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
