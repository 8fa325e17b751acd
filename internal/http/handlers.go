package http

import (
	"errors"
	"io"
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sujalbistaa/lantern/internal/models"
	"github.com/sujalbistaa/lantern/internal/posts"
	"github.com/sujalbistaa/lantern/internal/ws"
)

// ExportFilename is the attachment name of the admin export.
const ExportFilename = "lantern_posts.json"

// --- Structs for request binding ---
type CreatePostInput struct {
	Text    string `json:"text"`
	Channel string `json:"channel"`
}

type ReactionInput struct {
	Kind string `json:"kind"`
}

type ReportInput struct {
	Reason string `json:"reason"`
}

type UpdatePostInput struct {
	State string `json:"state" binding:"omitempty,oneof=held published"`
	Text  string `json:"text"`
}

// --- Handlers ---
type Env struct {
	Posts *posts.Service
	Hub   *ws.Hub
	Log   *zap.Logger
}

func (e *Env) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (e *Env) GetPublicPosts(c *gin.Context) {
	list, err := e.Posts.ListPublished(c.Request.Context(), c.Query("channel"))
	if err != nil {
		e.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (e *Env) CreatePost(c *gin.Context) {
	var input CreatePostInput
	if !e.bindOptionalJSON(c, &input) {
		return
	}
	post, err := e.Posts.Create(c.Request.Context(), input.Text, input.Channel)
	if err != nil {
		e.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "post": post})
}

func (e *Env) AddReaction(c *gin.Context) {
	var input ReactionInput
	if !e.bindOptionalJSON(c, &input) {
		return
	}
	post, err := e.Posts.AddReaction(c.Request.Context(), c.Param("id"), input.Kind)
	if err != nil {
		e.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "post": post})
}

func (e *Env) ReportPost(c *gin.Context) {
	// The reason is optional; a malformed body is treated as no reason.
	var input ReportInput
	_ = c.ShouldBindJSON(&input)

	if err := e.Posts.Report(c.Request.Context(), c.Param("id"), input.Reason); err != nil {
		e.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (e *Env) AdminListPosts(c *gin.Context) {
	list, err := e.Posts.ListAll(c.Request.Context())
	if err != nil {
		e.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (e *Env) AdminUpdatePost(c *gin.Context) {
	var input UpdatePostInput
	if !e.bindOptionalJSON(c, &input) {
		return
	}
	post, err := e.Posts.AdminUpdate(c.Request.Context(), c.Param("id"), models.PostUpdate{
		State: input.State,
		Text:  input.Text,
	})
	if err != nil {
		e.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (e *Env) AdminDeletePost(c *gin.Context) {
	if err := e.Posts.AdminDelete(c.Request.Context(), c.Param("id")); err != nil {
		e.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (e *Env) ToggleAutoPublish(c *gin.Context) {
	on, err := e.Posts.ToggleAutoPublish(c.Request.Context())
	if err != nil {
		e.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "autoPublish": on})
}

func (e *Env) GetAutoPublish(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"autoPublish": e.Posts.AutoPublish()})
}

func (e *Env) ExportPosts(c *gin.Context) {
	list, err := e.Posts.Export(c.Request.Context())
	if err != nil {
		e.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+ExportFilename+`"`)
	c.JSON(http.StatusOK, list)
}

func (e *Env) GetAuditLog(c *gin.Context) {
	entries, err := e.Posts.AuditLog(c.Request.Context(), c.Query("target"))
	if err != nil {
		e.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (e *Env) ServeFeed(c *gin.Context) {
	ws.ServeWs(e.Hub, c.Writer, c.Request)
}

// bindOptionalJSON decodes the body into dst. An empty body leaves dst
// zero-valued so the service reports the missing field.
func (e *Env) bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return false
	}
	return true
}

// respondError maps service errors to status codes. Anything unexpected is
// logged and reported, and the client only sees a generic message.
func (e *Env) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, posts.ErrTextRequired),
		errors.Is(err, posts.ErrTextTooLong),
		errors.Is(err, posts.ErrKindRequired),
		errors.Is(err, posts.ErrInvalidState):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
	default:
		e.Log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	}
}
