package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"campaign-score-system/models"
)

func seedPost(t *testing.T, db *gorm.DB, user *models.User, mission *models.Mission, externalID string) *models.Post {
	t.Helper()
	post := &models.Post{ExternalID: externalID, Content: "#ntu" + mission.Code, UserID: user.ID, MissionID: &mission.ID}
	require.NoError(t, db.Create(post).Error)
	return post
}

func TestApplyCreditsAndScores(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "fb-1", "Alice")
	easy := seedMission(t, db, "A1B", 1)  // 2 points
	hard := seedMission(t, db, "C3D", 3)  // 5 points

	ledger := NewScoreLedger(db, DefaultScoreTable())
	postA := seedPost(t, db, user, easy, "p-1")
	postB := seedPost(t, db, user, hard, "p-2")

	created, err := ledger.Apply(context.Background(), []ScoreCandidate{
		{UserID: user.ID, MissionID: easy.ID, PostID: postA.ID},
		{UserID: user.ID, MissionID: hard.ID, PostID: postB.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", user.ID).Error)
	assert.Equal(t, 7, stored.Score)
}

func TestApplyIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "fb-1", "Alice")
	mission := seedMission(t, db, "A1B", 1)
	post := seedPost(t, db, user, mission, "p-1")

	ledger := NewScoreLedger(db, DefaultScoreTable())
	batch := []ScoreCandidate{{UserID: user.ID, MissionID: mission.ID, PostID: post.ID}}

	created, err := ledger.Apply(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	// re-applying the identical batch creates nothing and moves no score
	created, err = ledger.Apply(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", user.ID).Error)
	assert.Equal(t, 2, stored.Score)

	var records int64
	db.Model(&models.ScoreRecord{}).Count(&records)
	assert.EqualValues(t, 1, records)
}

func TestApplyAbsorbsDuplicateMissionUserPairs(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "fb-1", "Alice")
	mission := seedMission(t, db, "A1B", 2)
	postA := seedPost(t, db, user, mission, "p-1")
	postB := seedPost(t, db, user, mission, "p-2")

	ledger := NewScoreLedger(db, DefaultScoreTable())

	// same mission completed through two different posts in one batch
	created, err := ledger.Apply(context.Background(), []ScoreCandidate{
		{UserID: user.ID, MissionID: mission.ID, PostID: postA.ID},
		{UserID: user.ID, MissionID: mission.ID, PostID: postB.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	var records int64
	db.Model(&models.ScoreRecord{}).Count(&records)
	assert.EqualValues(t, 1, records)

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", user.ID).Error)
	assert.Equal(t, 3, stored.Score)
}

func TestScoreSumInvariant(t *testing.T) {
	db := newTestDB(t)
	alice := seedUser(t, db, "fb-1", "Alice")
	bob := seedUser(t, db, "fb-2", "Bob")
	m1 := seedMission(t, db, "A1B", 1)
	m2 := seedMission(t, db, "C3D", 2)

	ledger := NewScoreLedger(db, DefaultScoreTable())
	_, err := ledger.Apply(context.Background(), []ScoreCandidate{
		{UserID: alice.ID, MissionID: m1.ID, PostID: seedPost(t, db, alice, m1, "p-1").ID},
		{UserID: alice.ID, MissionID: m2.ID, PostID: seedPost(t, db, alice, m2, "p-2").ID},
		{UserID: bob.ID, MissionID: m1.ID, PostID: seedPost(t, db, bob, m1, "p-3").ID},
	})
	require.NoError(t, err)

	audit := NewAuditService(db, DefaultScoreTable())
	drifted, err := audit.CheckScores()
	require.NoError(t, err)
	assert.Zero(t, drifted)
}

func TestAuditDetectsDrift(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "fb-1", "Alice")
	mission := seedMission(t, db, "A1B", 1)
	post := seedPost(t, db, user, mission, "p-1")

	ledger := NewScoreLedger(db, DefaultScoreTable())
	_, err := ledger.Apply(context.Background(), []ScoreCandidate{{UserID: user.ID, MissionID: mission.ID, PostID: post.ID}})
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).Update("score", 99).Error)

	audit := NewAuditService(db, DefaultScoreTable())
	drifted, err := audit.CheckScores()
	require.NoError(t, err)
	assert.Equal(t, 1, drifted)
}

func TestRebuildRepairsLedger(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "fb-1", "Alice")
	m1 := seedMission(t, db, "A1B", 1)
	m2 := seedMission(t, db, "C3D", 3)
	seedPost(t, db, user, m1, "p-1")
	seedPost(t, db, user, m2, "p-2")
	// a duplicate completion of m1 through another post must not double-credit
	seedPost(t, db, user, m1, "p-3")

	// corrupt state: no records, wrong cached score
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).Update("score", 42).Error)

	ledger := NewScoreLedger(db, DefaultScoreTable())
	report, err := ledger.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Records)
	assert.Equal(t, 1, report.ChangedUsers)

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", user.ID).Error)
	assert.Equal(t, 7, stored.Score)

	audit := NewAuditService(db, DefaultScoreTable())
	drifted, err := audit.CheckScores()
	require.NoError(t, err)
	assert.Zero(t, drifted)
}
