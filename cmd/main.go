package main

import (
	"os"

	"github.com/dralucard666/weihnachten-sub000/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
