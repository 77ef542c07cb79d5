// The main package for the xfix executable.
package main

import (
	"github.com/JakeFAU/xfix/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
