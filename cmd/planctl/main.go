package main

import (
	"os"

	"github.com/zatekoja/itineraryconcierge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
