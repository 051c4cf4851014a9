package main

import (
	"os"

	"github.com/zeusync/metacore/cmd/archivectl/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
