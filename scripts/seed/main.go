package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"admitcast/internal/config"
	"admitcast/internal/models"
	"admitcast/internal/repository"
)

// ANSI color codes for terminal output
const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
)

var (
	clearData = flag.Bool("clear", false, "Clear existing students before inserting")
)

// sampleStudents is a small realistic data set for local development.
// The third entry carries a deliberately malformed phone so the
// exclusion path is visible end to end.
var sampleStudents = []models.Student{
	{AdmissionNo: "ADM-2025-001", Name: "Aarav Sharma", GuardianName: strPtr("Rakesh Sharma"), Phone: "9876543210", ClassName: strPtr("VI-A"), FeeDue: int64Ptr(12500)},
	{AdmissionNo: "ADM-2025-002", Name: "Diya Patel", GuardianName: strPtr("Meena Patel"), Phone: "+91 98765 00011", ClassName: strPtr("VI-A"), FeeDue: int64Ptr(12500)},
	{AdmissionNo: "ADM-2025-003", Name: "Kabir Verma", Phone: "123", ClassName: strPtr("VII-B"), FeeDue: int64Ptr(14000)},
	{AdmissionNo: "ADM-2025-004", Name: "Ananya Iyer", GuardianName: strPtr("Suresh Iyer"), Phone: "08765432109", ClassName: strPtr("VIII-C"), FeeDue: int64Ptr(15500)},
	{AdmissionNo: "ADM-2025-005", Name: "Rohan Das", GuardianName: strPtr("Anita Das"), Phone: "919876500022", ClassName: strPtr("VII-B")},
}

func main() {
	flag.Parse()

	// Load .env file (ignore error if not present)
	_ = godotenv.Load()

	printInfo("=== Admitcast Database Seeder ===")

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

	ctx := context.Background()

	if *clearData {
		if _, err := db.ExecContext(ctx, `DELETE FROM students`); err != nil {
			printError(fmt.Sprintf("Failed to clear students: %v", err))
			os.Exit(1)
		}
		printSuccess("Cleared existing students")
	}

	studentRepo := repository.NewStudentRepository(db)
	for i := range sampleStudents {
		student := sampleStudents[i]
		if err := studentRepo.Create(ctx, &student); err != nil {
			printError(fmt.Sprintf("Failed to create student %s: %v", student.Name, err))
			os.Exit(1)
		}
		fmt.Printf("  created student %d: %s (%s)\n", student.ID, student.Name, student.Phone)
	}

	printSuccess(fmt.Sprintf("Seeded %d students", len(sampleStudents)))
}

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }

func printInfo(msg string) {
	fmt.Println(colorCyan + msg + colorReset)
}

func printSuccess(msg string) {
	fmt.Println(colorGreen + "✓ " + msg + colorReset)
}

func printError(msg string) {
	fmt.Println(colorRed + "✗ " + msg + colorReset)
}
