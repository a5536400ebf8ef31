// Command httpq submits a batch of HTTP requests concurrently and prints
// one JSON result per request as the results are delivered.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
