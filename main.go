package main

import (
	"os"

	"github.com/shandysiswandi/simtrack/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
