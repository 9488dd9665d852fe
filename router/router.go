package router

import (
	"log"

	"peraduan/config"
	"peraduan/controllers"
	"peraduan/middleware"

	"github.com/gin-gonic/gin"
)

// Initialize wires all routes and middlewares: the provider-facing
// webhook, health probes, and the operator back-office under /api.
func Initialize(r *gin.Engine, cfg config.Configuration) {
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())

	webhook := controllers.NewWebhookHandler(cfg)
	entries := controllers.NewEntriesHandler(cfg)

	r.GET("/health", webhook.Health)

	// Gateway webhook. GET answers provider liveness probes; POST takes
	// message events. Both slash forms are registered because the gateway
	// does not follow redirects. No Logger here: the gateway retries on
	// slow acks.
	r.GET("/webhook/whatsapp", webhook.Health)
	r.POST("/webhook/whatsapp", webhook.Receive)
	r.GET("/webhook/whatsapp/", webhook.Health)
	r.POST("/webhook/whatsapp/", webhook.Receive)

	api := r.Group("/api")

	// Contests (operator)
	api.GET("/contests", Logger(), controllers.GetContests)
	api.GET("/contests/:id", Logger(), controllers.GetContestByID)
	api.POST("/contests", Logger(), controllers.CreateContest)
	api.PUT("/contests/:id", Logger(), controllers.UpdateContest)

	// Entries review queue (operator)
	api.GET("/entries", Logger(), entries.List)
	api.GET("/entries/:id", Logger(), entries.Get)
	api.PUT("/entries/:id/status", Logger(), entries.UpdateStatus)

	// Gateway instance probe
	api.GET("/instance/status", Logger(), controllers.GetInstanceStatus(cfg))

	log.Printf("Routes initialized")
}
