package main

import (
	"log"

	"peraduan/config"
	"peraduan/db"
	"peraduan/router"
	"peraduan/workers"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	db.SetConfigurations(cfg)
	database, err := db.Connect()
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer database.Close()
	db.Migrate(database)

	r := gin.New()
	r.Use(db.SetDBtoContext(database))
	router.Initialize(r, cfg)

	workers.StartOutboxWorker(database, cfg)

	log.Printf("Listening on :%s", cfg.ApiPort)
	if err := r.Run(":" + cfg.ApiPort); err != nil {
		log.Fatalf("server: %v", err)
	}
}
