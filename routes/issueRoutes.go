package routes

import (
	"civiclens-be/controllers"
	"civiclens-be/middlewares"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes
func IssueRoutes(r *gin.Engine) {
	issue := r.Group("/api/issue")
	issue.Use(middlewares.AuthMiddleware())
	{
		issue.POST("/create", middlewares.ActionRateLimiter("report", 5), controllers.CreateIssue)
		issue.GET("/", controllers.GetAllIssues)
		issue.GET("/mine", controllers.GetIssuesByUser)
		issue.GET("/unrouted", controllers.GetUnroutedIssues)
		issue.GET("/analytics", controllers.GetIssueAnalytics)
		issue.GET("/recent", controllers.RecentIssues)
		issue.GET("/:id", controllers.GetIssue)
		issue.POST("/:id/vote", middlewares.ActionRateLimiter("vote", 50), controllers.VoteOnIssue)
		issue.POST("/:id/advance", controllers.AdvanceIssue)
		issue.POST("/:id/department", controllers.ReassignIssueDepartment)
	}
}
