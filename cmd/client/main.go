// Command client records speech, shows the running transcript, and prints
// the corrected translation returned by the translation server.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
