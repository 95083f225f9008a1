package main

import (
	"os"

	"github.com/spigell/draft-n-pray/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
