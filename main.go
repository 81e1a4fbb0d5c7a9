package main

import (
	"os"

	"github.com/streetlevel/mapraster-go/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
