package main

import (
	"os"

	"github.com/modelforge/modelforge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
