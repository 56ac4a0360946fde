package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/soloking1412/Unicorn-Launchpad/internal/handlers"
)

func SetupSnapshotRoutes(r *gin.RouterGroup, h *handlers.Handlers) {
	r.GET("/projects/:address/snapshots", h.ListSnapshots)
	r.GET("/projects/:address/mismatches", h.ListMismatches)

	tracked := r.Group("/tracked")
	{
		tracked.GET("", h.ListTracked)
		tracked.POST("", h.Track)
	}
}
