package main

import (
	"os"

	"pecuny/cmd/pecuny-import/cmd"

	_ "time/tzdata"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
