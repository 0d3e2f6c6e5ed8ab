package main

import (
	"os"

	"github.com/dshills/codescan/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
