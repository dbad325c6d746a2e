package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetDepartments returns the configured department reference list with the
// categories each one services.
func GetDepartments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"departments": Engine.Router().Departments()})
}
