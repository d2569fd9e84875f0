// Package main provides the entry point for the fileindexer CLI.
package main

import (
	"os"

	"github.com/czadmedia/FileIndexer/cmd/fileindexer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
