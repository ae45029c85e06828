// services/directory.go
package services

import (
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"campaign-score-system/models"
)

// UserDirectory resolves feed authors to local user rows, creating them on
// first sight. The cache lives for one synchronization pass: build a fresh
// directory per pass and throw it away, so stale name/avatar data can never
// leak across passes.
type UserDirectory struct {
	db    *gorm.DB
	mu    sync.Mutex
	cache map[string]*models.User
}

func NewUserDirectory(db *gorm.DB) *UserDirectory {
	return &UserDirectory{db: db, cache: make(map[string]*models.User)}
}

// Resolve looks a feed author up by external id. Misses create the user with
// a zero score; a create losing the uniqueness race to a concurrent process
// retries the lookup once and returns the now-existing row. Hits refresh the
// cached name/avatar fields in place but never touch the score.
func (d *UserDirectory) Resolve(author FeedAuthor) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if user, ok := d.cache[author.ExternalID]; ok {
		return user, nil
	}

	var user models.User
	err := d.db.First(&user, "external_id = ?", author.ExternalID).Error
	switch {
	case err == nil:
		if user.Name != author.Name || user.Avatar != author.AvatarURL {
			updates := map[string]any{"name": author.Name, "avatar": author.AvatarURL}
			if err := d.db.Model(&user).Updates(updates).Error; err != nil {
				return nil, fmt.Errorf("failed to refresh user %s: %w", author.ExternalID, err)
			}
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			ExternalID: author.ExternalID,
			Name:       author.Name,
			Avatar:     author.AvatarURL,
		}
		if createErr := d.db.Create(&user).Error; createErr != nil {
			if !errors.Is(createErr, gorm.ErrDuplicatedKey) {
				return nil, fmt.Errorf("failed to create user %s: %w", author.ExternalID, createErr)
			}
			// lost the race to another pass; the row exists now
			if err := d.db.First(&user, "external_id = ?", author.ExternalID).Error; err != nil {
				return nil, fmt.Errorf("user %s vanished after duplicate create: %w", author.ExternalID, err)
			}
		}
	default:
		return nil, fmt.Errorf("failed to look up user %s: %w", author.ExternalID, err)
	}

	d.cache[author.ExternalID] = &user
	return &user, nil
}

// MissionCatalog resolves mission codes to mission rows. Missions do not
// change mid-pass, so both hits and misses are cached for the pass lifetime.
// An unknown code is not an error; it means the post carries no recognized
// mission.
type MissionCatalog struct {
	db    *gorm.DB
	mu    sync.Mutex
	cache map[string]*models.Mission
}

func NewMissionCatalog(db *gorm.DB) *MissionCatalog {
	return &MissionCatalog{db: db, cache: make(map[string]*models.Mission)}
}

// Resolve returns the mission for a code, or nil when the code is unknown.
func (c *MissionCatalog) Resolve(code string) (*models.Mission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if mission, ok := c.cache[code]; ok {
		return mission, nil
	}

	var mission models.Mission
	err := c.db.First(&mission, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.cache[code] = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up mission %s: %w", code, err)
	}

	c.cache[code] = &mission
	return &mission, nil
}
