package main

import (
	"os"

	"github.com/dgallion1/plandag/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
