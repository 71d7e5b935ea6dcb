// Entrypoint for the CLI; all command handling lives in package cmd.

package main

import (
	"github.com/remimazolam/tci-engine/cmd"
)

func main() {
	cmd.Execute()
}
