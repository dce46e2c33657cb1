package main

import (
	"os"

	"github.com/gisops/canload/canload/canloadcli"
	"github.com/gisops/canload/log"
)

func main() {
	app := canloadcli.GetApp()
	if err := app.Run(os.Args); err != nil {
		log.Export.Fatal(err)
	}
}
