// Command crmctl drives the CRM API from a terminal.  The session cookies
// are kept in a file between runs, so a server-side rotation is saved on
// every call.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
