// Command lectern is a study assistant: it answers questions about PDFs and
// writes notes and questionnaires with a language model.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
