// Package main is ojtctl, the operator CLI of the OJT service.
package main

import (
	"os"

	"github.com/solvera/ojt-core/cmd/ojtctl/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
