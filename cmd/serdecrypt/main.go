package main

import (
	"os"

	"github.com/zoobzio/serde/cmd/serdecrypt/cmd"
)

func main() {
	if err := cmd.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
