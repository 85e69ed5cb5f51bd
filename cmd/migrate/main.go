package main

import (
	"os"
)

func main() {
	if err := NewRootCmd(openMigrator).Execute(); err != nil {
		os.Exit(1)
	}
}
