package main

import (
	"errors"
	"log"
	"net/http"
	"os"

	"semaphore/dashboard/internal/api"
	"semaphore/dashboard/internal/config"
)

func main() {
	cfg := config.Load()
	cli := &commandLine{
		client: api.New(cfg.APIBaseURL, &http.Client{Timeout: cfg.APITimeout}, nil),
		out:    os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if errors.Is(err, errHelp) {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}
