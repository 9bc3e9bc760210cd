// Package main is the entry point for the jiralink application.
package main

import (
	"fmt"
	"os"

	"github.com/jiralink/jiralink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
