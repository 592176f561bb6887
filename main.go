// The main package for the mira executable.
package main

import (
	"github.com/TembulatC/mira-games-backend/cmd"
)

func main() {
	cmd.Execute()
}
