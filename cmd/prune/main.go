// Package main provides the prune CLI.
package main

import (
	"fmt"
	"os"
)

const version = "v0.0.1-dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("prune %s\n", version)
		return
	}

	fmt.Println("prune - Structured attention-head pruning for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("")
	fmt.Println("See examples/encoder-prune for a runnable end-to-end demo.")
}
