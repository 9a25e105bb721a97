package main

import (
	"context"
	"log"
	"os"
	"time"

	"ai-review-be/internal/model"
	"ai-review-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.Open(context.Background(), dsn, database.DefaultOptions(false), 10*time.Second)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	defer database.Close(db)

	log.Println("Starting review archive migration...")

	// 3. Pre-Migration: Extensions
	setupSQL := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
	}
	for _, sql := range setupSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute setup SQL: %v. Continuing...", err)
		}
	}

	// 4. AutoMigrate
	models := []interface{}{
		&model.ReviewJob{},
		&model.ReviewFinding{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	// 5. Post-Migration: indexes and views
	postMigrationSQL := []string{
		`CREATE INDEX IF NOT EXISTS idx_review_findings_severity ON review_findings (review_job_id, severity);`,

		// View: review_cost_by_document
		`CREATE OR REPLACE VIEW review_cost_by_document AS
		 SELECT rj.document_id, COUNT(*) AS reviews, SUM((rj.metrics->>'total_cost_usd')::numeric) AS total_cost_usd
		 FROM review_jobs rj
		 WHERE rj.deleted_at IS NULL
		 GROUP BY rj.document_id;`,
	}
	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	log.Println("✅ Success: Review archive migration completed.")
}
