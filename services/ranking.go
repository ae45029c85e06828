// services/ranking.go
package services

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"campaign-score-system/models"
)

const rankingPageSize = 100

// RankingService serves the leaderboard and debug read views over the
// reconciled data, plus the ledger rebuild trigger.
type RankingService struct {
	DB     *gorm.DB
	Ledger *ScoreLedger
}

func NewRankingService(db *gorm.DB, ledger *ScoreLedger) *RankingService {
	return &RankingService{DB: db, Ledger: ledger}
}

// GetRanking returns one leaderboard page, score descending, with absolute
// rank numbers and the freshest updated_at on the page.
func (s *RankingService) GetRanking(c *fiber.Ctx) error {
	offset := 0
	if raw := c.Query("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "msg": "invalid offset"})
		}
		offset = parsed
	}

	var total int64
	if err := s.DB.Model(&models.User{}).Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var users []models.User
	if err := s.DB.Order("score DESC").Limit(rankingPageSize).Offset(offset).Find(&users).Error; err != nil {
		log.Errorf("DB error fetching ranking: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch ranking"})
	}

	type rankedUser struct {
		Rank int `json:"rank"`
		models.User
	}
	rows := make([]rankedUser, len(users))
	var lastUpdated time.Time
	for i, u := range users {
		rows[i] = rankedUser{Rank: offset + i + 1, User: u}
		if u.UpdatedAt.After(lastUpdated) {
			lastUpdated = u.UpdatedAt
		}
	}

	var nextPageOffset *int
	if int64(offset+rankingPageSize) < total {
		next := offset + rankingPageSize
		nextPageOffset = &next
	}

	return c.JSON(fiber.Map{
		"count":            total,
		"next_page_offset": nextPageOffset,
		"last_updated":     lastUpdated,
		"dataset":          rows,
	})
}

// GetRank is the slim public API variant: top N users, limited fields.
func (s *RankingService) GetRank(c *fiber.Ctx) error {
	limit := rankingPageSize
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > rankingPageSize {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "msg": "invalid limit"})
		}
		limit = parsed
	}

	var users []models.User
	if err := s.DB.Order("score DESC").Limit(limit).
		Select("external_id", "avatar", "score", "updated_at", "team_id").
		Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch rank"})
	}
	return c.JSON(fiber.Map{"ok": true, "data": users})
}

// --- Debug views ---

func (s *RankingService) ListMissions(c *fiber.Ctx) error {
	var missions []models.Mission
	if err := s.DB.Order("code ASC").Find(&missions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(fiber.Map{"title": "Mission List", "dataset": missions})
}

func (s *RankingService) ListUsers(c *fiber.Ctx) error {
	var users []models.User
	if err := s.DB.Order("score DESC").Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(fiber.Map{"title": "User List", "dataset": users})
}

// ListPosts is the reconciliation log view: every stored post, newest
// upstream activity first.
func (s *RankingService) ListPosts(c *fiber.Ctx) error {
	var posts []models.Post
	if err := s.DB.Order("external_ts DESC").Find(&posts).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(fiber.Map{"title": "Log", "dataset": posts})
}

// TriggerRebuild regenerates the whole ledger from stored posts.
func (s *RankingService) TriggerRebuild(c *fiber.Ctx) error {
	report, err := s.Ledger.Rebuild(c.Context())
	if err != nil {
		log.Errorf("Ledger rebuild failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Rebuild failed"})
	}
	return c.JSON(fiber.Map{"ok": true, "report": report})
}
