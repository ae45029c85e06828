// handlers/ranking_routes.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"campaign-score-system/services"
)

func SetupRankingRoutes(app *fiber.App, rankingService *services.RankingService) {
	// Public leaderboard
	app.Get("/", rankingService.GetRanking)
	app.Get("/api/rank", rankingService.GetRank)

	// Debug views over the reconciled data
	debug := app.Group("/debug")
	debug.Get("/missions", rankingService.ListMissions)
	debug.Get("/users", rankingService.ListUsers)
	debug.Get("/log", rankingService.ListPosts)
	debug.Post("/rebuild", rankingService.TriggerRebuild)
}
