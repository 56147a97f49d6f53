package main

import (
	"github.com/pairlink/pairlink/internal/cli"
	"github.com/pairlink/pairlink/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cli.Execute()
}
