package main

import (
	"os"

	ragtubecmder "github.com/papercomputeco/ragtube/cmd/ragtube"
)

func main() {
	cmd := ragtubecmder.NewRagtubeCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
