package main

import (
	"errors"
	"os"

	"github.com/salescast/salescast/cmd/salescast/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		if errors.Is(err, commands.ErrRowFailures) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
