package search

import (
	"errors"
	"net/http"

	registryblob "github.com/chirino/chat-archive/internal/registry/blob"
	registryroute "github.com/chirino/chat-archive/internal/registry/route"
	"github.com/gin-gonic/gin"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Name:  "search",
		Order: 20,
		Type:  registryroute.RouteTypeMain,
		Loader: func(r *gin.Engine, deps registryroute.Deps) error {
			MountRoutes(r, deps.Archive, deps.AuthOrPass())
			return nil
		},
	})
}

// MountRoutes mounts search routes.
func MountRoutes(r *gin.Engine, archive registryroute.Archive, auth gin.HandlerFunc) {
	g := r.Group("/v1", auth)

	g.GET("/search", func(c *gin.Context) {
		searchRooms(c, archive)
	})
}

func searchRooms(c *gin.Context, archive registryroute.Archive) {
	result, err := archive.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func handleError(c *gin.Context, err error) {
	var validation *registryblob.ValidationError
	var storeErr *registryblob.StoreError

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error(), "field": validation.Field})
	case errors.As(err, &storeErr):
		c.JSON(http.StatusInternalServerError, gin.H{"code": "store_unavailable", "error": "archive store unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
