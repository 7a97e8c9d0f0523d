package rooms

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-archive/internal/archive"
	registryblob "github.com/chirino/chat-archive/internal/registry/blob"
	registryroute "github.com/chirino/chat-archive/internal/registry/route"
	"github.com/chirino/chat-archive/internal/security"
	"github.com/chirino/chat-archive/internal/unsend"
	"github.com/gin-gonic/gin"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Name:  "rooms",
		Order: 10,
		Type:  registryroute.RouteTypeMain,
		Loader: func(r *gin.Engine, deps registryroute.Deps) error {
			MountRoutes(r, deps.Archive, deps.AuthOrPass())
			return nil
		},
	})
}

// MountRoutes mounts room routes.
func MountRoutes(r *gin.Engine, svc registryroute.Archive, auth gin.HandlerFunc) {
	g := r.Group("/v1", auth)

	g.GET("/rooms", func(c *gin.Context) {
		listRooms(c, svc)
	})
	g.GET("/rooms/:roomId", func(c *gin.Context) {
		getRoom(c, svc)
	})
	g.POST("/rooms/:roomId/unsend", func(c *gin.Context) {
		unsendMessage(c, svc)
	})
}

func listRooms(c *gin.Context, svc registryroute.Archive) {
	list, err := svc.ListRooms(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func getRoom(c *gin.Context, svc registryroute.Archive) {
	view, err := svc.GetRoom(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type unsendRequest struct {
	MessageID *int64          `json:"messageId"`
	Timestamp json.RawMessage `json:"timestamp"`
}

func unsendMessage(c *gin.Context, svc registryroute.Archive) {
	var req unsendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error()})
		return
	}
	target := unsend.Target{MessageID: req.MessageID}
	if req.MessageID == nil {
		ts, err := parseTimestamp(req.Timestamp)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error(), "field": "timestamp"})
			return
		}
		target.Timestamp = ts
	}

	roomID := c.Param("roomId")
	result, err := svc.DeleteBotMessage(c.Request.Context(), roomID, target)
	if err != nil {
		log.Error("Unsend failed", "room", roomID, "operator", security.GetOperator(c), "err", err)
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// parseTimestamp accepts the timestamp forms archived messages use: epoch
// numbers (integer, fractional or exponent form, millis or seconds), numeric
// strings and RFC 3339. An absent or null value yields nil.
func parseTimestamp(raw json.RawMessage) (*time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	t, ok := archive.ParseTimestamp(raw)
	if !ok {
		return nil, fmt.Errorf("timestamp must be epoch milliseconds or RFC 3339, got %s", raw)
	}
	return &t, nil
}

func handleError(c *gin.Context, err error) {
	var notFound *registryblob.NotFoundError
	var validation *registryblob.ValidationError
	var upstream *registryblob.UpstreamError
	var storeErr *registryblob.StoreError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error(), "field": validation.Field})
	case errors.As(err, &upstream):
		c.JSON(http.StatusBadGateway, gin.H{"code": "upstream_failed", "error": err.Error()})
	case errors.As(err, &storeErr):
		c.JSON(http.StatusInternalServerError, gin.H{"code": "store_unavailable", "error": "archive store unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
