package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"swap-backend/internal/config"

	_ "github.com/lib/pq"
)

// Checks that the configured database is reachable and that the execution
// ledger table exists with wide enough columns for tx hashes and amounts.
func main() {
	fmt.Println("🔍 Verifying database connection and ledger schema...")

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	sqlDB, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqlDB.Close()

	var dbName string
	if err := sqlDB.QueryRow("SELECT current_database()").Scan(&dbName); err != nil {
		log.Fatalf("Failed to query database: %v", err)
	}
	fmt.Printf("📋 Connected to database: %s\n", dbName)

	checks := []struct {
		column  string
		minSize int64
	}{
		{"id", 128},
		{"tx_hash", 66},
		{"from_amount", 100},
		{"amount_out", 100},
	}

	for _, check := range checks {
		var size sql.NullInt64
		err := sqlDB.QueryRow(`
			SELECT character_maximum_length
			FROM information_schema.columns
			WHERE table_schema = 'public'
			AND table_name = 'swap_executions'
			AND column_name = $1
		`, check.column).Scan(&size)
		if err == sql.ErrNoRows || (err == nil && !size.Valid) {
			fmt.Printf("❌ swap_executions.%s missing or untyped; run the server once to migrate\n", check.column)
			continue
		}
		if err != nil {
			log.Fatalf("Failed to query column %s: %v", check.column, err)
		}
		if size.Int64 < check.minSize {
			fmt.Printf("❌ swap_executions.%s is VARCHAR(%d), need at least VARCHAR(%d)\n", check.column, size.Int64, check.minSize)
			continue
		}
		fmt.Printf("✅ swap_executions.%s VARCHAR(%d)\n", check.column, size.Int64)
	}

	var count int64
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM swap_executions").Scan(&count); err != nil {
		log.Fatalf("Failed to count executions: %v", err)
	}
	fmt.Printf("📋 Ledger rows: %d\n", count)
}
