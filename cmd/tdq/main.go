package main

import (
	"os"

	"github.com/roach88/tdq/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
