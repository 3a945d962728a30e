package main

import (
	"os"

	"github.com/BioHazard786/Warpmeet/cmd"
	"github.com/BioHazard786/Warpmeet/internal/logging"
)

func main() {
	// Initialize logging; commands reconfigure it once config is loaded.
	logging.Init(os.Getenv("LOG_LEVEL"), nil)
	cmd.Execute()
}
