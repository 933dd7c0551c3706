package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/panyam/jsmlc/cmd/jsmlc/commands"
)

func main() {
	envfile := ".env"
	if os.Getenv("JSMLC_ENV") == "dev" {
		envfile = ".env.dev"
	}
	// A missing env file is normal outside development checkouts.
	if err := godotenv.Load(envfile); err != nil && !os.IsNotExist(err) {
		slog.Warn("Error loading env file", "file", envfile, "err", err)
	}
	commands.Execute()
}
