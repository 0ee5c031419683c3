package main

import (
	"os"

	cmd "github.com/rohmanhakim/connector-etl/internal/cli"
)

func main() {
	os.Exit(cmd.Execute())
}
