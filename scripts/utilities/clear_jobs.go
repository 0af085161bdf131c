//go:build ignore

package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "modernc.org/sqlite"
)

// Clears terminal (completed/failed) jobs from the job ledger. Queued and
// running jobs are preserved.
func main() {
	path := os.Getenv("JOBS_DB_PATH")
	if path == "" {
		path = "./jobs.sqlite"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		log.Fatalf("Failed to open job ledger: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping job ledger: %v", err)
	}

	fmt.Printf("Clearing terminal jobs from %s...\n", path)

	result, err := db.Exec("DELETE FROM jobs WHERE status IN ('completed', 'failed')")
	if err != nil {
		log.Fatalf("Failed to clear jobs: %v", err)
	}

	deleted, _ := result.RowsAffected()
	fmt.Printf("Deleted %d jobs\n", deleted)
	fmt.Println("Preserved: queued and running jobs")
}
