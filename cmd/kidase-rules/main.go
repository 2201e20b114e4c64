package main

import (
	"os"

	"github.com/kidase-app/kidase-rules/cmd/kidase-rules/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
