package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bams-platform/bams-api/internal/models"
)

// operatorHeader names the request header carrying the acting user. Identity
// is established upstream; the API records whatever the gateway forwards.
const operatorHeader = "X-Operator"

func operatorFromContext(c *gin.Context) models.Operator {
	name := strings.TrimSpace(c.GetHeader(operatorHeader))
	if name == "" {
		name = "system"
	}
	return models.Operator{Name: name, IPAddress: c.ClientIP()}
}
