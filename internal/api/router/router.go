package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/talentops/match-service/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "match-api-service",
		})
	})

	matchHandler := handler.NewMatchHandler(deps)

	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs/:job_id/matches")
		{
			// POST /api/v1/jobs/:job_id/matches/recompute - Run a full matching pass
			jobs.POST("/recompute", matchHandler.RecomputeMatches)

			// GET /api/v1/jobs/:job_id/matches/top3 - Top 3 with inlined profiles
			jobs.GET("/top3", matchHandler.GetTopThreeMatches)

			// GET /api/v1/jobs/:job_id/matches/top - Top N, stored shape
			jobs.GET("/top", matchHandler.GetTopMatches)

			// GET /api/v1/jobs/:job_id/matches - All matches for the job
			jobs.GET("", matchHandler.ListMatchesByJob)
		}

		matches := v1.Group("/matches")
		{
			// POST /api/v1/matches - Create a match result
			matches.POST("", matchHandler.CreateMatch)

			// GET /api/v1/matches/:match_id - Get a match result
			matches.GET("/:match_id", matchHandler.GetMatch)

			// PUT /api/v1/matches/:match_id - Replace a match result
			matches.PUT("/:match_id", matchHandler.UpdateMatch)

			// DELETE /api/v1/matches/:match_id - Delete a match result
			matches.DELETE("/:match_id", matchHandler.DeleteMatch)
		}
	}

	return r
}
