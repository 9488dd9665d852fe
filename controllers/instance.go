package controllers

import (
	"net/http"

	"peraduan/config"
	"peraduan/tools"

	"github.com/gin-gonic/gin"
)

// GetInstanceStatus probes the gateway instance linked to the static
// configuration; ops use it to check whether the number is connected.
func GetInstanceStatus(cfg config.Configuration) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := tools.NewWabotClient(cfg.Wabot)
		status, err := client.GetInstanceStatus(c.Request.Context())
		if err != nil {
			RespondError(c, err.Error(), http.StatusBadGateway)
			return
		}
		RespondSuccess(c, status)
	}
}
