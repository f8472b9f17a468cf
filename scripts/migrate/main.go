package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"admitcast/internal/config"
)

// ANSI color codes for terminal output
const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
)

// schema holds the full database schema, applied idempotently
var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id SERIAL PRIMARY KEY,
		admission_no TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		guardian_name TEXT,
		phone TEXT NOT NULL,
		class_name TEXT,
		fee_due BIGINT,
		receipt_path TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS broadcast_settings (
		id INT PRIMARY KEY CHECK (id = 1),
		default_country_code TEXT NOT NULL,
		send_interval_secs INT NOT NULL,
		enable_jitter BOOLEAN NOT NULL,
		retry_attempts INT NOT NULL,
		retry_backoff_ms INT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS send_log (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		recipient_id INT NOT NULL,
		display_name TEXT NOT NULL,
		phone TEXT NOT NULL,
		status TEXT NOT NULL,
		message_hash TEXT NOT NULL,
		error TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_send_log_timestamp ON send_log (timestamp)`,
}

// dropStatements tears the schema down, newest first
var dropStatements = []string{
	`DROP TABLE IF EXISTS send_log`,
	`DROP TABLE IF EXISTS broadcast_settings`,
	`DROP TABLE IF EXISTS students`,
}

func main() {
	// Load .env file (ignore error if not present)
	_ = godotenv.Load()

	printInfo("=== Admitcast Migration Runner ===")

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	if command != "up" && command != "down" {
		fmt.Println("Usage: migrate [up|down]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		printError(fmt.Sprintf("Failed to load configuration: %v", err))
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		printError(fmt.Sprintf("Failed to open database connection: %v", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		printError(fmt.Sprintf("Failed to ping database: %v", err))
		os.Exit(1)
	}
	printSuccess("Connected to database")

	statements := schema
	if command == "down" {
		statements = dropStatements
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			printError(fmt.Sprintf("Statement failed: %v", err))
			os.Exit(1)
		}
	}

	printSuccess(fmt.Sprintf("Migration %s completed", command))
}

func printInfo(msg string) {
	fmt.Println(colorCyan + msg + colorReset)
}

func printSuccess(msg string) {
	fmt.Println(colorGreen + "✓ " + msg + colorReset)
}

func printError(msg string) {
	fmt.Println(colorRed + "✗ " + msg + colorReset)
}
