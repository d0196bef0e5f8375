// Package main provides the entry point for the smarthr CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/smarthr/cmd/smarthr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
