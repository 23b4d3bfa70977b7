package main

import (
	"os"

	"github.com/phenoscribe/phenoscribe/cmd/phenoscribe/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
