// Command djladder is a terminal practice helper for climbing the DJMAX
// RESPECT V difficulty ladder.
//
// Usage:
//
//	djladder          open the ladder UI
//	djladder update   refresh the local song cache
//	djladder stats    print attempt history
//
// Configuration is read from config.yaml in the data dir and DJLADDER_*
// environment variables.
package main

import (
	"fmt"
	"os"

	"djladder/cmd/djladder/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
