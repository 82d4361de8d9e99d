package main

import (
	"fmt"
	"os"

	"github.com/wyrdlab/reverie/internal/revctl/cmd"
)

func main() {
	command := cmd.NewRevctlCommand()
	if err := command.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
