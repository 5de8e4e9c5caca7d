//go:build ignore
// +build ignore

package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("=== Game Catalog Database Initialization ===")
	fmt.Println()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		fmt.Printf("⚠️  Warning: Could not load .env file: %v\n", err)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		fmt.Println("❌ DATABASE_URL environment variable not set")
		os.Exit(1)
	}

	parsed, err := url.Parse(databaseURL)
	if err != nil {
		fmt.Printf("❌ Invalid DATABASE_URL: %v\n", err)
		os.Exit(1)
	}
	dbName := strings.TrimPrefix(parsed.Path, "/")
	if dbName == "" {
		fmt.Println("❌ DATABASE_URL must name a database")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Connect to the default 'postgres' database to create ours
	admin := *parsed
	admin.Path = "/postgres"
	fmt.Println("📡 Connecting to PostgreSQL server...")

	adminConn, err := pgx.Connect(ctx, admin.String())
	if err != nil {
		fmt.Printf("❌ Failed to connect to PostgreSQL: %v\n", err)
		os.Exit(1)
	}

	var exists bool
	err = adminConn.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists)
	if err != nil {
		fmt.Printf("❌ Failed to check database existence: %v\n", err)
		adminConn.Close(ctx)
		os.Exit(1)
	}

	if !exists {
		fmt.Printf("📦 Creating '%s' database...\n", dbName)
		if _, err = adminConn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{dbName}.Sanitize()); err != nil {
			fmt.Printf("❌ Failed to create database: %v\n", err)
			adminConn.Close(ctx)
			os.Exit(1)
		}
		fmt.Printf("✅ Database '%s' created!\n", dbName)
	} else {
		fmt.Printf("✅ Database '%s' already exists\n", dbName)
	}
	adminConn.Close(ctx)

	fmt.Printf("📡 Connecting to %s database...\n", dbName)
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		fmt.Printf("❌ Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	fmt.Println("✅ Connected to database successfully!")
	fmt.Println()

	fmt.Println("📖 Reading SQL schema file...")
	sqlBytes, err := os.ReadFile("scripts/init_database.sql")
	if err != nil {
		fmt.Printf("❌ Failed to read SQL file: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("🚀 Executing database schema...")
	if _, err = conn.Exec(ctx, string(sqlBytes)); err != nil {
		fmt.Printf("❌ Failed to execute SQL: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Database schema executed successfully!")
	fmt.Println()

	fmt.Println("🔍 Verifying database setup...")

	var gameCount int
	if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM games").Scan(&gameCount); err != nil {
		fmt.Printf("⚠️  Warning: Could not count games: %v\n", err)
	} else {
		fmt.Printf("   🎮 Games in catalog: %d\n", gameCount)
	}

	var indexCount int
	if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM pg_indexes WHERE tablename = 'games'").Scan(&indexCount); err != nil {
		fmt.Printf("⚠️  Warning: Could not count indexes: %v\n", err)
	} else {
		fmt.Printf("   🗂️  Indexes on games: %d\n", indexCount)
	}

	fmt.Println()
	fmt.Println("🎉 Database initialization completed successfully!")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Test the connection: go run scripts/test_connection.go")
	fmt.Println("  2. Load a catalog: go run ./cmd/ingest -file games.csv")
}
