package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sujalbistaa/lantern/internal/models"
)

// Store owns the posts, reactions and audit tables.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) CreatePost(ctx context.Context, post *models.Post) error {
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

// PublishedPosts returns published posts newest first. An empty channel
// matches every channel.
func (s *Store) PublishedPosts(ctx context.Context, channel string) ([]models.Post, error) {
	q := s.db.WithContext(ctx).Where("state = ?", models.StatePublished)
	if channel != "" {
		q = q.Where("channel = ?", channel)
	}
	posts := []models.Post{}
	if err := q.Order("ts desc").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("list published posts: %w", err)
	}
	return posts, nil
}

// AllPosts returns every post regardless of state, newest first.
func (s *Store) AllPosts(ctx context.Context) ([]models.Post, error) {
	posts := []models.Post{}
	if err := s.db.WithContext(ctx).Order("ts desc").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

func (s *Store) GetPost(ctx context.Context, id string) (*models.Post, error) {
	return findPost(s.db.WithContext(ctx), id)
}

// UpdatePost applies the non-empty fields of u and returns the post as
// stored along with the state it had before.
func (s *Store) UpdatePost(ctx context.Context, id string, u models.PostUpdate) (*models.Post, string, error) {
	var (
		post      *models.Post
		prevState string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := findPost(tx, id)
		if err != nil {
			return err
		}
		prevState = before.State

		updates := map[string]interface{}{}
		if u.State != "" {
			updates["state"] = u.State
		}
		if u.Text != "" {
			updates["text"] = u.Text
		}
		if len(updates) == 0 {
			post = before
			return nil
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		post, err = findPost(tx, id)
		return err
	})
	if err != nil {
		return nil, "", wrapErr("update post", err)
	}
	return post, prevState, nil
}

// DeletePost removes a post and its reactions. Audit rows are kept.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Delete(&models.Post{}).Error; err != nil {
			return err
		}
		return tx.Where("post_id = ?", id).Delete(&models.Reaction{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// AddReaction increments the (post, kind) counter in a single upsert and
// returns the post with all of its reaction counts.
func (s *Store) AddReaction(ctx context.Context, id, kind string) (*models.Post, error) {
	var post *models.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if post, err = findPost(tx, id); err != nil {
			return err
		}

		r := models.Reaction{PostID: id, Kind: kind, Count: 1}
		err = tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "post_id"}, {Name: "kind"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count": gorm.Expr("? + 1", clause.Column{Table: "reactions", Name: "count"}),
			}),
		}).Create(&r).Error
		if err != nil {
			return err
		}

		post.Reactions, err = reactionCounts(tx, id)
		return err
	})
	if err != nil {
		return nil, wrapErr("add reaction", err)
	}
	return post, nil
}

// Reactions returns kind -> count for a post.
func (s *Store) Reactions(ctx context.Context, id string) (map[string]int, error) {
	counts, err := reactionCounts(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	return counts, nil
}

// FlagPost forces a post back to held and records a "flagged" audit entry.
// The audit entry is written even when no post matches id. It reports
// whether a published post was taken off the public feed.
func (s *Store) FlagPost(ctx context.Context, id, reason string) (bool, error) {
	var unpublished bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).
			Where("id = ? AND state = ?", id, models.StatePublished).
			Update("state", models.StateHeld)
		if res.Error != nil {
			return res.Error
		}
		unpublished = res.RowsAffected > 0
		return tx.Create(&models.AuditEntry{
			Action:  "flagged",
			Target:  id,
			Details: reason,
			TS:      s.now().UnixMilli(),
		}).Error
	})
	if err != nil {
		return false, fmt.Errorf("flag post: %w", err)
	}
	return unpublished, nil
}

func (s *Store) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	if entry.TS == 0 {
		entry.TS = s.now().UnixMilli()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// AuditEntries lists audit rows newest first, optionally for one target.
func (s *Store) AuditEntries(ctx context.Context, target string) ([]models.AuditEntry, error) {
	q := s.db.WithContext(ctx)
	if target != "" {
		q = q.Where("target = ?", target)
	}
	entries := []models.AuditEntry{}
	if err := q.Order("ts desc, id desc").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return entries, nil
}

func findPost(tx *gorm.DB, id string) (*models.Post, error) {
	var post models.Post
	if err := tx.Where("id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

func reactionCounts(tx *gorm.DB, id string) (map[string]int, error) {
	var rows []models.Reaction
	if err := tx.Where("post_id = ?", id).Find(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Kind] = r.Count
	}
	return counts, nil
}

func wrapErr(op string, err error) error {
	if errors.Is(err, models.ErrPostNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
