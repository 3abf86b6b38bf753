package main

import (
	"Fasting-Tracker/cmd/commands"
	"os"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
