// The main package for the glossary-harvester executable.
package main

import (
	"github.com/JakeFAU/glossary-harvester/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
