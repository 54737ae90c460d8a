package main

import (
	"os"

	"github.com/ZacxDev/lightrunner/cli"
)

func main() {
	os.Exit(cli.Execute())
}
