package models

import (
	"log"

	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/config"
)

// MigrateTable keeps the schema up-to-date on startup and in cmd tools.
func MigrateTable() {
	db := config.GetDB()
	if db == nil {
		log.Println("skipping migration: database not initialized")
		return
	}
	if err := db.AutoMigrate(
		&Owner{},
		&Provider{},
		&Order{},
		&PaymentRecord{},
		&AssignmentAttempt{},
		&IdempotencyKey{},
	); err != nil {
		log.Printf("auto migration failed: %v", err)
	}
}
