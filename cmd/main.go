package main

import (
	"os"

	"wellbeing-checkin-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
