package main

import (
	"os"

	"horse.fit/portalerts/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
