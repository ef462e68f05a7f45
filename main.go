package main

import (
	"os"

	"github.com/sitepipe/sitepipe/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
