package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"campaign-score-system/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Team{},
		&models.User{},
		&models.Mission{},
		&models.Post{},
		&models.ScoreRecord{},
	))
	return db
}

func seedMission(t *testing.T, db *gorm.DB, code string, difficulty int) *models.Mission {
	t.Helper()
	mission := &models.Mission{Code: code, Title: "mission " + code, Difficulty: difficulty}
	require.NoError(t, db.Create(mission).Error)
	return mission
}

func seedUser(t *testing.T, db *gorm.DB, externalID, name string) *models.User {
	t.Helper()
	user := &models.User{ExternalID: externalID, Name: name}
	require.NoError(t, db.Create(user).Error)
	return user
}

// fakeFeed is an in-memory FeedClient. Details are keyed by external post id;
// detailErr forces a per-post transport failure.
type fakeFeed struct {
	pages     []*FeedPage
	details   map[string]*PostDetail
	detailErr map[string]error

	detailCalls int
}

func (f *fakeFeed) FetchFirstPage(ctx context.Context) (*FeedPage, error) {
	return f.pages[0], nil
}

func (f *fakeFeed) FetchPage(ctx context.Context, cursor string) (*FeedPage, error) {
	for i := range f.pages {
		if fmt.Sprintf("page-%d", i) == cursor {
			return f.pages[i], nil
		}
	}
	return nil, fmt.Errorf("unknown cursor %q", cursor)
}

func (f *fakeFeed) FetchPostDetail(ctx context.Context, externalID string) (*PostDetail, error) {
	f.detailCalls++
	if err, ok := f.detailErr[externalID]; ok {
		return nil, err
	}
	detail, ok := f.details[externalID]
	if !ok {
		return nil, fmt.Errorf("no detail for %q", externalID)
	}
	return detail, nil
}

func feedPost(externalID, message, authorID, authorName string) (FeedItem, *PostDetail) {
	ts := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	item := FeedItem{ExternalID: externalID, Message: message, UpdatedAt: ts}
	detail := &PostDetail{
		ExternalID: externalID,
		Message:    message,
		PhotoURL:   "https://cdn.example.com/" + externalID + ".jpg",
		Likes:      3,
		PostedAt:   ts,
		Author: FeedAuthor{
			ExternalID: authorID,
			Name:       authorName,
			AvatarURL:  "https://cdn.example.com/" + authorID + ".png",
		},
	}
	return item, detail
}
