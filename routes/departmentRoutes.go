package routes

import (
	"civiclens-be/controllers"
	"civiclens-be/middlewares"

	"github.com/gin-gonic/gin"
)

// DepartmentRoutes sets up the department reference routes
func DepartmentRoutes(r *gin.Engine) {
	r.GET("/api/departments", middlewares.AuthMiddleware(), controllers.GetDepartments)
}
