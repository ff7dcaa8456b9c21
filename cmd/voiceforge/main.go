// Command voiceforge is the operator CLI: it enqueues voice builds, inspects
// the queue and checkpoints, and controls the daemon.
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "voiceforge:", err)
		os.Exit(1)
	}
}
