package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-hook/app/database"
	"github.com/lysyi3m/rss-hook/app/feed"
	"github.com/lysyi3m/rss-hook/app/tasks"
)

const maxBackupSize = 1 << 20

// NewHandler wires the API to its stores. backend may be nil when the
// storage has no remote dependency to report on.
func NewHandler(feedStore FeedStore, stateRepo database.FeedStateRepository, sentCounter SentCounter,
	scheduler tasks.TaskSchedulerInterface, backend HealthChecker) *Handler {
	return &Handler{
		feedStore:   feedStore,
		stateRepo:   stateRepo,
		sentCounter: sentCounter,
		scheduler:   scheduler,
		backend:     backend,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"timestamp":         time.Now().In(time.Local).Format(time.RFC3339),
		"scheduler_running": h.scheduler.IsRunning(),
		"sent_articles":     h.sentCounter.Size(),
	}

	if feeds, err := h.feedStore.List(); err == nil {
		health["feeds"] = len(feeds)
	}

	status := http.StatusOK
	if h.backend != nil {
		if err := h.backend.Health(); err != nil {
			slog.Error("Storage backend unhealthy", "error", err)
			health["backend_error"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, health)
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	feeds, err := h.feedStore.List()
	if err != nil {
		slog.Error("Feed list error", "operation", "list_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load feed list"})
		return
	}

	states, err := h.stateRepo.LoadFeedStates()
	if err != nil {
		slog.Warn("Feed state unreadable", "error", err)
		states = map[string]database.FeedState{}
	}

	response := make([]feedResponse, 0, len(feeds))
	for _, feedConfig := range feeds {
		response = append(response, withState(feedConfig, states))
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": response,
		"total": len(response),
	})
}

func (h *Handler) APIGetFeed(c *gin.Context) {
	feedConfig, err := h.feedStore.Get(c.Param("id"))
	if err != nil {
		h.respondStoreError(c, "get_feed", err)
		return
	}

	states, err := h.stateRepo.LoadFeedStates()
	if err != nil {
		slog.Warn("Feed state unreadable", "error", err)
		states = map[string]database.FeedState{}
	}

	c.JSON(http.StatusOK, withState(*feedConfig, states))
}

func (h *Handler) APICreateFeed(c *gin.Context) {
	var request feedRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	created, err := h.feedStore.Create(request.toConfig())
	if err != nil {
		h.respondStoreError(c, "create_feed", err)
		return
	}

	slog.Info("Feed created", "feed", created.DisplayName(), "id", created.ID)
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) APIUpdateFeed(c *gin.Context) {
	var request feedRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	updated, err := h.feedStore.Update(c.Param("id"), request.toConfig())
	if err != nil {
		h.respondStoreError(c, "update_feed", err)
		return
	}

	slog.Info("Feed updated", "feed", updated.DisplayName(), "id", updated.ID)
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) APIDeleteFeed(c *gin.Context) {
	deleted, err := h.feedStore.Delete(c.Param("id"))
	if err != nil {
		h.respondStoreError(c, "delete_feed", err)
		return
	}

	slog.Info("Feed deleted", "feed", deleted.DisplayName(), "id", deleted.ID)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"feed":    deleted,
	})
}

func (h *Handler) APIExportFeeds(c *gin.Context) {
	data, err := h.feedStore.Export()
	if err != nil {
		h.respondStoreError(c, "export_feeds", err)
		return
	}

	filename := fmt.Sprintf("rss-hook-backup-%s.json", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// APIImportFeeds restores the feed list from a multipart "backup_file"
// upload or from a raw JSON body.
func (h *Handler) APIImportFeeds(c *gin.Context) {
	data, err := readBackup(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid backup upload", "details": err.Error()})
		return
	}

	count, err := h.feedStore.Import(data)
	if err != nil {
		h.respondStoreError(c, "import_feeds", err)
		return
	}

	slog.Info("Feed list restored from backup", "feeds", count)
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"imported": count,
	})
}

func (h *Handler) APIRunScheduler(c *gin.Context) {
	if !h.scheduler.IsRunning() {
		c.JSON(http.StatusConflict, gin.H{"error": "Scheduler is not running"})
		return
	}

	h.scheduler.Trigger()

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Scheduling cycle requested",
	})
}

func (h *Handler) respondStoreError(c *gin.Context, operation string, err error) {
	switch {
	case errors.Is(err, feed.ErrFeedNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
	case errors.Is(err, feed.ErrInvalidFeed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid feed", "details": err.Error()})
	default:
		slog.Error("Feed list error", "operation", operation, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Feed list error"})
	}
}

func withState(feedConfig feed.Config, states map[string]database.FeedState) feedResponse {
	response := feedResponse{Config: feedConfig}
	if state, ok := states[feedConfig.ID]; ok {
		lastChecked := state.LastChecked
		response.LastChecked = &lastChecked
		response.StatusCode = state.StatusCode
	}
	return response
}

func readBackup(c *gin.Context) ([]byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fileHeader, err := c.FormFile("backup_file")
		if err != nil {
			return nil, fmt.Errorf("missing backup_file: %w", err)
		}
		if fileHeader.Size > maxBackupSize {
			return nil, fmt.Errorf("backup exceeds %d bytes", maxBackupSize)
		}

		file, err := fileHeader.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open backup_file: %w", err)
		}
		defer file.Close()

		return io.ReadAll(file)
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBackupSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) > maxBackupSize {
		return nil, fmt.Errorf("backup exceeds %d bytes", maxBackupSize)
	}
	if len(data) == 0 {
		return nil, errors.New("empty backup")
	}
	return data, nil
}
