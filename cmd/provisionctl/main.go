package main

import (
	"os"

	"provision-risk-lab/cmd/provisionctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
