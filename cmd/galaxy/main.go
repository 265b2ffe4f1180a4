// Command galaxy is a terminal client for the DSA Galaxy tutor.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/markdave123-py/dsa-galaxy/internal/client"
	"github.com/markdave123-py/dsa-galaxy/internal/logger"
)

const banner = `
    ✦ DSA Galaxy ✦
    your data structures & algorithms instructor
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	baseURL := os.Getenv("GALAXY_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Server: %s\n", baseURL)
	fmt.Println("    Type /help for commands.")
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	api := client.New(baseURL, client.WithToken(os.Getenv("GALAXY_TOKEN")))
	log := logger.Setup(os.Stderr, os.Getenv("LOG_LEVEL"))
	ctl := client.NewController(api, log)

	r := newREPL(api, ctl, os.Stdin, color.Output)
	if api.Token() != "" {
		if err := r.loadIdentity(ctx); err != nil {
			r.warn("stored token rejected: %v", err)
		}
	}
	return r.run(ctx)
}
