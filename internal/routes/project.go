package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/soloking1412/Unicorn-Launchpad/internal/handlers"
)

func SetupProjectRoutes(r *gin.RouterGroup, h *handlers.Handlers) {
	project := r.Group("/projects/:address")
	{
		project.GET("", h.GetProject)
		project.GET("/milestones", h.ListMilestones)
		project.GET("/proposals", h.ListProposals)
		project.GET("/quote", h.Quote)
		project.GET("/reconcile", h.Reconcile)
	}

	r.GET("/curve", h.Curve)
}
