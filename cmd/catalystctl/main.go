// Command catalystctl is the operator CLI for catalyst: submit tasks,
// inspect their progress, and bootstrap the broker topology.
package main

import (
	"fmt"
	"os"

	"github.com/timour/catalyst/cmd/catalystctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
