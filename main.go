package main

import (
	"github.com/washingtonpost/clokta-go/cmd"
)

// Version is overridden by the release build via -ldflags.
var Version = "dev"

func main() {
	cmd.Execute(Version)
}
