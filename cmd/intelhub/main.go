package main

import (
	"os"

	"github.com/raphaelschols/ai-intel-hub/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
