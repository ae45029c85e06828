// services/reconciler.go
package services

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"campaign-score-system/models"
)

// Verdict is the single per-post outcome of a reconciliation step. A post
// either yields exactly one verdict or an error folded into VerdictError;
// there is no path that reports both.
type Verdict string

const (
	// VerdictIntact: seen before, content unchanged, nothing to do.
	VerdictIntact Verdict = "intact"
	// VerdictCreated: new post, one detail fetch performed, row persisted.
	VerdictCreated Verdict = "created"
	// VerdictUpdated: edited but never scored, row patched in place.
	VerdictUpdated Verdict = "updated"
	// VerdictDeleted: edited after scoring; prior row and its score record
	// were invalidated and the new content persisted fresh.
	VerdictDeleted Verdict = "deleted"
	// VerdictError: unexpected per-post failure; the pass continues.
	VerdictError Verdict = "error"
)

// ScoreCandidate is a provisional (user, mission, post) credit emitted by the
// reconciler. Whether it actually becomes a ScoreRecord is decided by the
// ScoreLedger alone.
type ScoreCandidate struct {
	UserID    string
	MissionID string
	PostID    string
}

// PhotoMirror copies a remote photo into our own storage and returns the new
// URL. Optional; reconciliation never fails because of it.
type PhotoMirror interface {
	MirrorPhoto(ctx context.Context, srcURL, key string) (string, error)
}

// PostReconciler decides, per feed item, whether the post is new, unchanged
// or edited, and persists accordingly. Build one per pass so the directory
// and catalog caches stay pass-scoped.
type PostReconciler struct {
	db        *gorm.DB
	feed      FeedClient
	users     *UserDirectory
	missions  *MissionCatalog
	extractor *HashtagExtractor
	table     ScoreTable
	media     PhotoMirror
}

func NewPostReconciler(db *gorm.DB, feed FeedClient, users *UserDirectory, missions *MissionCatalog, extractor *HashtagExtractor, table ScoreTable, media PhotoMirror) *PostReconciler {
	return &PostReconciler{
		db:        db,
		feed:      feed,
		users:     users,
		missions:  missions,
		extractor: extractor,
		table:     table,
		media:     media,
	}
}

// Reconcile runs one feed item through the state machine and returns its
// verdict plus, when the content carries a resolvable mission tag, a
// score candidate for the ledger.
func (r *PostReconciler) Reconcile(ctx context.Context, item FeedItem) (Verdict, *ScoreCandidate, error) {
	var local models.Post
	err := r.db.First(&local, "external_id = ?", item.ExternalID).Error
	switch {
	case err == nil:
		if local.Content == item.Message {
			return VerdictIntact, nil, nil
		}
		return r.reconcileEdited(ctx, &local, item)
	case errors.Is(err, gorm.ErrRecordNotFound):
		cand, err := r.createFromFeed(ctx, item)
		if err != nil {
			return VerdictError, nil, err
		}
		return VerdictCreated, cand, nil
	default:
		return VerdictError, nil, fmt.Errorf("failed to look up post %s: %w", item.ExternalID, err)
	}
}

// reconcileEdited handles a post whose upstream content no longer matches the
// stored row. Unscored rows are safe to patch in place; a row that already
// produced a ScoreRecord is compensated and recreated instead, because
// patching a scored record in place is defined as unsafe.
func (r *PostReconciler) reconcileEdited(ctx context.Context, local *models.Post, item FeedItem) (Verdict, *ScoreCandidate, error) {
	var record models.ScoreRecord
	err := r.db.First(&record, "post_id = ?", local.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cand, err := r.retag(local, item)
		if err != nil {
			return VerdictError, nil, err
		}
		return VerdictUpdated, cand, nil
	}
	if err != nil {
		return VerdictError, nil, fmt.Errorf("failed to look up score record for post %s: %w", local.ID, err)
	}

	if err := r.invalidate(local, &record); err != nil {
		return VerdictError, nil, err
	}
	log.Infof("[PROBE] post %s invalidated after edit, re-ingesting", item.ExternalID)

	cand, err := r.createFromFeed(ctx, item)
	if err != nil {
		// prior row is already gone; the next pass picks the post up fresh
		return VerdictError, nil, err
	}
	return VerdictDeleted, cand, nil
}

// retag updates an unscored post in place and re-derives its mission from
// the new content.
func (r *PostReconciler) retag(local *models.Post, item FeedItem) (*ScoreCandidate, error) {
	local.Content = item.Message
	local.ExternalTS = item.UpdatedAt
	local.MissionID = nil

	var cand *ScoreCandidate
	if code, ok := r.extractor.Extract(item.Message); ok {
		mission, err := r.missions.Resolve(code)
		if err != nil {
			return nil, err
		}
		if mission != nil {
			local.MissionID = &mission.ID
			cand = &ScoreCandidate{UserID: local.UserID, MissionID: mission.ID, PostID: local.ID}
		}
	}

	updates := map[string]any{
		"content":     local.Content,
		"external_ts": local.ExternalTS,
		"mission_id":  local.MissionID,
	}
	if err := r.db.Model(local).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update post %s: %w", local.ExternalID, err)
	}
	return cand, nil
}

// invalidate reverses the stale credit and destroys the post and its score
// record in one transaction. If the mission behind the record cannot be
// found the data already diverged; log and skip the reversal rather than
// guess at a point value.
func (r *PostReconciler) invalidate(local *models.Post, record *models.ScoreRecord) error {
	var mission models.Mission
	missionErr := r.db.First(&mission, "id = ?", record.MissionID).Error

	return r.db.Transaction(func(tx *gorm.DB) error {
		if missionErr != nil {
			log.Warnf("[PROBE] mission %s behind score record %s not found, skipping score reversal", record.MissionID, record.ID)
		} else if points := r.table.Points(mission.Difficulty); points != 0 {
			if err := tx.Model(&models.User{}).
				Where("id = ?", record.UserID).
				UpdateColumn("score", gorm.Expr("score - ?", points)).Error; err != nil {
				return fmt.Errorf("failed to reverse %d points for user %s: %w", points, record.UserID, err)
			}
			log.Infof("[PROBE] reversed %d points for user %s (post %s edited)", points, record.UserID, local.ExternalID)
		}
		if err := tx.Delete(record).Error; err != nil {
			return fmt.Errorf("failed to delete score record %s: %w", record.ID, err)
		}
		if err := tx.Delete(local).Error; err != nil {
			return fmt.Errorf("failed to delete post %s: %w", local.ID, err)
		}
		return nil
	})
}

// createFromFeed runs the unseen branch: fetch detail (the one extra network
// round-trip per new post), attribute the author, persist the row with a
// null mission, then tag it once the hashtag resolves.
func (r *PostReconciler) createFromFeed(ctx context.Context, item FeedItem) (*ScoreCandidate, error) {
	detail, err := r.feed.FetchPostDetail(ctx, item.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch detail for post %s: %w", item.ExternalID, err)
	}

	user, err := r.users.Resolve(detail.Author)
	if err != nil {
		return nil, err
	}

	photo := detail.PhotoURL
	if r.media != nil && photo != "" {
		mirrored, err := r.media.MirrorPhoto(ctx, photo, "posts/"+item.ExternalID)
		if err != nil {
			log.Warnf("[PROBE] photo mirror failed for post %s: %v", item.ExternalID, err)
		} else {
			photo = mirrored
		}
	}

	post := models.Post{
		ExternalID: item.ExternalID,
		Content:    detail.Message,
		PhotoURL:   photo,
		Likes:      detail.Likes,
		ExternalTS: item.UpdatedAt,
		UserID:     user.ID,
	}
	if err := r.db.Create(&post).Error; err != nil {
		return nil, fmt.Errorf("failed to create post %s: %w", item.ExternalID, err)
	}

	code, ok := r.extractor.Extract(detail.Message)
	if !ok {
		return nil, nil
	}
	mission, err := r.missions.Resolve(code)
	if err != nil {
		return nil, err
	}
	if mission == nil {
		// looks like a campaign tag but the catalog does not know it
		return nil, nil
	}

	if err := r.db.Model(&post).Update("mission_id", mission.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to tag post %s with mission %s: %w", post.ExternalID, mission.Code, err)
	}
	return &ScoreCandidate{UserID: user.ID, MissionID: mission.ID, PostID: post.ID}, nil
}
