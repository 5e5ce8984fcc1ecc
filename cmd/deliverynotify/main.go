package main

import (
	"os"

	"github.com/lupppig/deliverynotify/cmd/deliverynotify/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
