package main

import (
	"resource-downloader/cmd"
	"resource-downloader/logger"

	_ "go.uber.org/automaxprocs/maxprocs"
)

func main() {
	logger.InitLogger() // Initialize the logger first
	defer logger.Sync() // Ensure logs are flushed on exit
	cmd.Execute()
}
