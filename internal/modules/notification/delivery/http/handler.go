package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"anoa.com/tunehub/internal/entity"
	"anoa.com/tunehub/internal/middleware"
	"anoa.com/tunehub/internal/modules/notification/deadletter"
	notifDto "anoa.com/tunehub/internal/modules/notification/dto"
	"anoa.com/tunehub/internal/modules/notification/realtime"
	notification "anoa.com/tunehub/internal/modules/notification/service"
	"anoa.com/tunehub/pkg/apperror"
	"anoa.com/tunehub/pkg/logger"
	"anoa.com/tunehub/pkg/response"
	"anoa.com/tunehub/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type TokenVerifier interface {
	ParseUserID(token string) (uuid.UUID, error)
}

// DeadLetterReader lists requests that exhausted their persistence attempts.
type DeadLetterReader interface {
	List(ctx context.Context, limit int64) ([]deadletter.Record, error)
}

type NotificationHandler struct {
	history     notification.HistoryService
	publisher   notification.Publisher
	dispatcher  notification.Dispatcher
	registry    *realtime.Registry
	auth        TokenVerifier
	deadLetters DeadLetterReader
	upgrader    websocket.Upgrader
	sendBuffer  int
	log         *slog.Logger
}

type Options struct {
	AllowedOrigins []string
	SendBuffer     int
	// DeadLetters is nil when dead letters only go to the log.
	DeadLetters    DeadLetterReader
}

func NewNotificationHandler(
	history notification.HistoryService,
	publisher notification.Publisher,
	dispatcher notification.Dispatcher,
	registry *realtime.Registry,
	auth TokenVerifier,
	opts Options,
	log *slog.Logger,
) *NotificationHandler {
	return &NotificationHandler{
		history:     history,
		publisher:   publisher,
		dispatcher:  dispatcher,
		registry:    registry,
		auth:        auth,
		deadLetters: opts.DeadLetters,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
		sendBuffer: opts.SendBuffer,
		log:        log,
	}
}

// originChecker accepts requests without an Origin header (non-browser
// clients) and browser requests from the configured origins.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}

// HandleWebSocket authenticates before upgrading, so a bad token gets a
// plain 401 and no connection is ever registered.
func (h *NotificationHandler) HandleWebSocket(c *gin.Context) {
	userID, err := h.auth.ParseUserID(middleware.BearerToken(c))
	if err != nil {
		response.ResponseError(c, apperror.New(http.StatusUnauthorized, err.Error(), err))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written the error response.
		h.log.Warn("failed to upgrade websocket", logger.UserID(userID), logger.Error(err))
		return
	}

	realtime.NewClient(conn, userID, h.registry, h.sendBuffer, h.log).Run()
}

// Publish is the service-to-service entry point. Requests are queued unless
// sync=true, in which case the record is created and pushed right away.
func (h *NotificationHandler) Publish(c *gin.Context) {
	var req entity.NotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, fmt.Errorf("%w: %s", apperror.ErrInvalidInput, validator.FormatValidationError(err)))
		return
	}

	ctx := c.Request.Context()
	if c.Query("sync") != "true" {
		h.publisher.Enqueue(ctx, req)
		c.JSON(http.StatusAccepted, gin.H{"message": "notification queued"})
		return
	}

	n, err := h.publisher.CreateNow(ctx, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	if n == nil {
		c.Status(http.StatusNoContent)
		return
	}

	h.dispatcher.Dispatch(ctx, n.UserID, *n)
	c.JSON(http.StatusCreated, gin.H{"data": notifDto.ToNotificationResponse(*n)})
}

// ListDeadLetters returns the newest dead-lettered requests for operators.
func (h *NotificationHandler) ListDeadLetters(c *gin.Context) {
	if h.deadLetters == nil {
		response.ResponseError(c, fmt.Errorf("%w: dead letters are not stored without redis", apperror.ErrUnavailable))
		return
	}

	var filter notifDto.DeadLetterFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.ResponseError(c, fmt.Errorf("%w: %s", apperror.ErrInvalidInput, validator.FormatValidationError(err)))
		return
	}

	records, err := h.deadLetters.List(c.Request.Context(), int64(filter.Limit))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records})
}

func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	var filter notifDto.NotificationFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.ResponseError(c, fmt.Errorf("%w: %s", apperror.ErrInvalidInput, validator.FormatValidationError(err)))
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.history.List(c.Request.Context(), userID, filter)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	count, err := h.history.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID, id, ok := h.userAndNotification(c)
	if !ok {
		return
	}

	if err := h.history.MarkAsRead(c.Request.Context(), userID, id); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "notification marked as read"})
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.history.MarkAllAsRead(c.Request.Context(), userID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "all notifications marked as read"})
}

func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	userID, id, ok := h.userAndNotification(c)
	if !ok {
		return
	}

	if err := h.history.Delete(c.Request.Context(), userID, id); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "notification deleted"})
}

func (h *NotificationHandler) DeleteAllRead(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.history.DeleteAllRead(c.Request.Context(), userID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "read notifications deleted"})
}

func (h *NotificationHandler) userAndNotification(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	var req notifDto.NotificationIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.ResponseError(c, fmt.Errorf("%w: %s", apperror.ErrInvalidInput, validator.FormatValidationError(err)))
		return uuid.Nil, uuid.Nil, false
	}

	id, err := uuid.Parse(req.ID)
	if err != nil {
		response.ResponseError(c, fmt.Errorf("%w: invalid notification id", apperror.ErrInvalidInput))
		return uuid.Nil, uuid.Nil, false
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return uuid.Nil, uuid.Nil, false
	}

	return userID, id, true
}
