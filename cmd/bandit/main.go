package main

import (
	"os"

	"github.com/rustyeddy/bandit/cmd/bandit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
