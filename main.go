// ./main.go
package main

import (
	"github.com/xkilldash9x/formbridge/cmd"
)

// main is the entry point for the formbridge CLI.
func main() {
	cmd.Execute()
}
