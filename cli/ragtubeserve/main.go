package main

import (
	"os"

	servecmder "github.com/papercomputeco/ragtube/cmd/ragtube/serve"
)

func main() {
	cmd := servecmder.NewServeCmd()
	cmd.Use = "ragtubeserve"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .ragtube/ config directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
