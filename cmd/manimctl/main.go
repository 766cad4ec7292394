// Package main is the entry point for manimctl, the terminal client of the
// manim render service.
package main

import (
	"os"

	"manim-service/cmd/manimctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
