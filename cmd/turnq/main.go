package main

import (
	"os"

	"github.com/Iron-Ham/turnq/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
