// main.go
// Entry point for the realtime load tester.
package main

import (
	"log"
	"os"

	"github.com/liveinteract/realtime-load-tester/cmd"
)

func main() {
	app := cmd.NewRootApp()

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
