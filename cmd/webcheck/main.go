package main

import (
	"fmt"
	"os"

	"github.com/telepair/webcheck/cmd/webcheck/cmd"
	"github.com/telepair/webcheck/internal/pipeline"
)

func main() {
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(pipeline.ExitCode(err))
}
