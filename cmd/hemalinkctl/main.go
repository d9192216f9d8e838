package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "hemalinkctl",
		Usage: "Operate a hemalink record store",
		Commands: []*cli.Command{
			seedCmd,
			matchCmd,
			inventoryCmd,
			statsCmd,
		},
	}
}
