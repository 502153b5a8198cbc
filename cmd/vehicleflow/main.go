package main

import (
	"os"

	"github.com/drblury/vehicleflow/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
