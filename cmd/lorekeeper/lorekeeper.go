package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/wyrdlab/reverie/internal/lorekeeper"
)

func main() {
	lorekeeper.NewApp("lorekeeper").Run()
}
