package db

import (
	"log"
	"os"
	"path/filepath"

	"peraduan/config"
	"peraduan/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

var conf config.Configuration

func SetConfigurations(configuration config.Configuration) {
	conf = configuration
}

// Connect opens the database (sqlite3 by default) and runs the automigrate
// when AUTOMIGRATE=1 is exported (dev environments).
func Connect() (*gorm.DB, error) {
	database := conf.Database
	if database == "" {
		database = "sqlite3"
	}

	var (
		db  *gorm.DB
		err error
	)

	if database == "postgres" || database == "postgresql" {
		log.Println("db: using postgresql connection...")
		path := "host=" + conf.DbHost + " port=" + conf.DbPort
		path += " user=" + conf.DbUser + " dbname=" + conf.DbName
		path += " password=" + conf.DbPass
		db, err = gorm.Open("postgres", path)
	} else {
		log.Println("db: using sqlite3 connection...")
		dir := filepath.Dir("db/database.db")
		db, err = gorm.Open("sqlite3", dir+"/database.db")
	}

	if err != nil {
		log.Println("db: connect error: " + err.Error())
		return nil, err
	}

	db.LogMode(true)

	if getenv("AUTOMIGRATE", "0") == "1" {
		Migrate(db)
	}

	return db, nil
}

// Migrate creates/updates the schema for the core entities.
func Migrate(db *gorm.DB) {
	db.AutoMigrate(
		&models.Tenant{},
		&models.Customer{},
		&models.WhatsAppConnection{},
		&models.Conversation{},
		&models.Message{},
		&models.Attachment{},
		&models.Contest{},
		&models.ContestEntry{},
		&models.ContestFlowState{},
		&models.OutboundJob{},
	)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
