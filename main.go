package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"taskbook/internal/cli"
)

func main() {
	// Load .env file (optional - won't error if missing)
	_ = godotenv.Load()

	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
