package main

import (
	"os"

	"github.com/speedrun-hq/speedrun-go/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
