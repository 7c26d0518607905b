package main

import (
	"os"

	biosearchcmder "github.com/papercomputeco/biosearch/cmd/biosearch"
)

func main() {
	cmd := biosearchcmder.NewBiosearchCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
