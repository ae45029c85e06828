// services/audit.go
package services

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"campaign-score-system/models"
)

// AuditService periodically verifies that every user's stored score equals
// the sum of their score records' point values. Read-only: drift is logged,
// never silently corrected (the rebuild endpoint exists for that).
type AuditService struct {
	DB    *gorm.DB
	Table ScoreTable
}

func NewAuditService(db *gorm.DB, table ScoreTable) *AuditService {
	return &AuditService{DB: db, Table: table}
}

// StartAuditScheduler runs the score-sum check on a fixed interval.
func (s *AuditService) StartAuditScheduler(interval time.Duration) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			drifted, err := s.CheckScores()
			if err != nil {
				log.Errorf("[AUDIT] score check failed: %v", err)
				return
			}
			if drifted > 0 {
				log.Warnf("[AUDIT] %d user(s) with drifted scores", drifted)
			}
		}),
	)
}

// CheckScores recomputes every user's score from the ledger and returns the
// number of users whose stored score disagrees.
func (s *AuditService) CheckScores() (int, error) {
	var records []models.ScoreRecord
	if err := s.DB.Preload("Mission").Find(&records).Error; err != nil {
		return 0, err
	}

	want := map[string]int{}
	for _, rec := range records {
		if rec.Mission == nil {
			log.Warnf("[AUDIT] score record %s references missing mission %s", rec.ID, rec.MissionID)
			continue
		}
		want[rec.UserID] += s.Table.Points(rec.Mission.Difficulty)
	}

	var users []models.User
	if err := s.DB.Find(&users).Error; err != nil {
		return 0, err
	}

	drifted := 0
	for _, user := range users {
		if user.Score != want[user.ID] {
			drifted++
			log.Warnf("[AUDIT] user %s (%s): stored score %d, ledger sum %d", user.Name, user.ID, user.Score, want[user.ID])
		}
	}
	return drifted, nil
}
