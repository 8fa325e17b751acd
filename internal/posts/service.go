// Package posts implements the post lifecycle: submission with moderation
// gating, reactions, reports and the admin review workflow.
package posts

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sujalbistaa/lantern/internal/moderation"
	"github.com/sujalbistaa/lantern/internal/models"
)

// MaxTextLength is the longest post text accepted, in characters.
const MaxTextLength = 1000

// DefaultReportReason is recorded when a report carries no reason.
const DefaultReportReason = "reported by user"

var (
	ErrTextRequired = errors.New("text required")
	ErrTextTooLong  = errors.New("text too long")
	ErrKindRequired = errors.New("kind required")
	ErrInvalidState = errors.New("state must be held or published")
)

// Store is the persistence the service needs.
type Store interface {
	CreatePost(ctx context.Context, post *models.Post) error
	PublishedPosts(ctx context.Context, channel string) ([]models.Post, error)
	AllPosts(ctx context.Context) ([]models.Post, error)
	UpdatePost(ctx context.Context, id string, u models.PostUpdate) (post *models.Post, prevState string, err error)
	DeletePost(ctx context.Context, id string) error
	AddReaction(ctx context.Context, id, kind string) (*models.Post, error)
	FlagPost(ctx context.Context, id, reason string) (unpublished bool, err error)
	AppendAudit(ctx context.Context, entry *models.AuditEntry) error
	AuditEntries(ctx context.Context, target string) ([]models.AuditEntry, error)
}

// Event types sent to live feed subscribers.
const (
	EventNewPost  = "new_post"
	EventUpdate   = "update"
	EventRemove   = "remove"
	EventReaction = "reaction"
)

// Notifier receives changes to the public feed.
type Notifier interface {
	Notify(ctx context.Context, eventType string, data interface{}) error
}

// Service holds the process-wide auto-publish flag and orchestrates every
// post operation against the Store.
type Service struct {
	store    Store
	notifier Notifier
	log      *zap.Logger

	autoPublish atomic.Bool
	lastTS      atomic.Int64
	now         func() time.Time
}

// NewService builds a Service. notifier may be nil.
func NewService(store Store, notifier Notifier, log *zap.Logger, autoPublish bool) *Service {
	s := &Service{
		store:    store,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
	s.autoPublish.Store(autoPublish)
	return s
}

// Create validates and stores a new post. Flagged text is always held;
// otherwise the post is published only while auto-publish is on.
func (s *Service) Create(ctx context.Context, text, channel string) (*models.Post, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrTextRequired
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return nil, ErrTextTooLong
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = models.DefaultChannel
	}

	state := models.StateHeld
	flagged := moderation.Flagged(text)
	if !flagged && s.autoPublish.Load() {
		state = models.StatePublished
	}

	post := &models.Post{
		ID:      uuid.NewString(),
		Text:    text,
		Channel: channel,
		State:   state,
		TS:      s.timestamp(),
	}
	if err := s.store.CreatePost(ctx, post); err != nil {
		return nil, err
	}
	if flagged {
		s.log.Info("post held by moderation filter", zap.String("post_id", post.ID))
	}
	if post.State == models.StatePublished {
		s.notify(ctx, EventNewPost, post)
	}
	return post, nil
}

// ListPublished returns published posts newest first, optionally for one channel.
func (s *Service) ListPublished(ctx context.Context, channel string) ([]models.Post, error) {
	return s.store.PublishedPosts(ctx, strings.TrimSpace(channel))
}

// ListAll returns every post newest first.
func (s *Service) ListAll(ctx context.Context) ([]models.Post, error) {
	return s.store.AllPosts(ctx)
}

// AddReaction bumps the kind counter on a post and returns the post with
// all of its reaction counts.
func (s *Service) AddReaction(ctx context.Context, postID, kind string) (*models.Post, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return nil, ErrKindRequired
	}
	post, err := s.store.AddReaction(ctx, postID, kind)
	if err != nil {
		return nil, err
	}
	if post.State == models.StatePublished {
		s.notify(ctx, EventReaction, map[string]interface{}{"id": post.ID, "reactions": post.Reactions})
	}
	return post, nil
}

// Report sends a post back to the review queue. It does not check that the
// post exists; the audit entry is written either way. Feed subscribers are
// told only when a published post was pulled.
func (s *Service) Report(ctx context.Context, postID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultReportReason
	}
	unpublished, err := s.store.FlagPost(ctx, postID, reason)
	if err != nil {
		return err
	}
	if unpublished {
		s.notify(ctx, EventRemove, map[string]string{"id": postID})
	}
	return nil
}

// AdminUpdate applies the non-empty fields of u. The attempt is audited
// before the post is looked up, so a missing post still leaves a record.
func (s *Service) AdminUpdate(ctx context.Context, postID string, u models.PostUpdate) (*models.Post, error) {
	if u.State != "" && !models.ValidState(u.State) {
		return nil, ErrInvalidState
	}
	if utf8.RuneCountInString(u.Text) > MaxTextLength {
		return nil, ErrTextTooLong
	}

	post, prevState, updateErr := s.store.UpdatePost(ctx, postID, u)
	if updateErr != nil && !errors.Is(updateErr, models.ErrPostNotFound) {
		return nil, updateErr
	}
	if err := s.audit(ctx, "update_post", postID, u); err != nil {
		return nil, err
	}
	if updateErr != nil {
		return nil, updateErr
	}

	wasPublic := prevState == models.StatePublished
	isPublic := post.State == models.StatePublished
	switch {
	case !wasPublic && isPublic:
		s.notify(ctx, EventNewPost, post)
	case wasPublic && isPublic:
		s.notify(ctx, EventUpdate, post)
	case wasPublic && !isPublic:
		s.notify(ctx, EventRemove, map[string]string{"id": post.ID})
	}
	return post, nil
}

// AdminDelete removes a post and its reactions. Audit rows referencing the
// post are kept.
func (s *Service) AdminDelete(ctx context.Context, postID string) error {
	if err := s.store.DeletePost(ctx, postID); err != nil {
		return err
	}
	if err := s.audit(ctx, "delete_post", postID, struct{}{}); err != nil {
		return err
	}
	s.notify(ctx, EventRemove, map[string]string{"id": postID})
	return nil
}

// ToggleAutoPublish flips the auto-publish flag and returns the new value.
func (s *Service) ToggleAutoPublish(ctx context.Context) (bool, error) {
	for {
		old := s.autoPublish.Load()
		if s.autoPublish.CompareAndSwap(old, !old) {
			s.log.Info("auto-publish toggled", zap.Bool("auto_publish", !old))
			err := s.audit(ctx, "toggle_auto_publish", "", map[string]bool{"autoPublish": !old})
			return !old, err
		}
	}
}

// AutoPublish reports the current auto-publish flag.
func (s *Service) AutoPublish() bool {
	return s.autoPublish.Load()
}

// Export returns every post for download.
func (s *Service) Export(ctx context.Context) ([]models.Post, error) {
	return s.store.AllPosts(ctx)
}

// AuditLog lists audit entries newest first, optionally for one target.
func (s *Service) AuditLog(ctx context.Context, target string) ([]models.AuditEntry, error) {
	return s.store.AuditEntries(ctx, target)
}

func (s *Service) audit(ctx context.Context, action, target string, details interface{}) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return err
	}
	return s.store.AppendAudit(ctx, &models.AuditEntry{
		Action:  action,
		Target:  target,
		Details: string(raw),
		TS:      s.now().UnixMilli(),
	})
}

func (s *Service) notify(ctx context.Context, eventType string, data interface{}) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, eventType, data); err != nil {
		s.log.Warn("feed notification failed", zap.String("type", eventType), zap.Error(err))
	}
}

// timestamp returns the current epoch millisecond, bumped past the previous
// value so posts created in the same millisecond still order strictly.
func (s *Service) timestamp() int64 {
	for {
		now := s.now().UnixMilli()
		last := s.lastTS.Load()
		if now <= last {
			now = last + 1
		}
		if s.lastTS.CompareAndSwap(last, now) {
			return now
		}
	}
}
