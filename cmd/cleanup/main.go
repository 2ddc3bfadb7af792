package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
)

// Truncates all tenant data from a development database, keeping the plan
// catalog. Refuses to run without an explicit connection string.
func main() {
	url := os.Getenv("DATABASE_URL")
	if len(os.Args) > 1 {
		url = os.Args[1]
	}
	if url == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL or a connection string argument is required")
		os.Exit(1)
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	// Reverse dependency order; plans stay seeded.
	tables := []string{
		"invite_links",
		"subscriptions",
		"permissions",
		"members",
		"branches",
		"churches",
		"credentials",
		"users",
	}

	for _, table := range tables {
		if _, err := conn.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to truncate %s: %v\n", table, err)
			os.Exit(1)
		}
		fmt.Printf("Cleared %s\n", table)
	}

	fmt.Println("Database reset complete.")
}
