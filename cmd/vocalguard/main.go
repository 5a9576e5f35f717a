// Package main provides the VocalGuard CLI.
//
// Usage:
//
//	vocalguard [flags] <command> [args]
//
// Commands:
//
//	detect    - Classify an audio file with the primary model
//	standard  - Classify an audio file with the feature-vector model
//	ensemble  - Classify with both models and blend the verdicts
//	attention - Print the attention analysis for an audio file
//	cache     - Inspect or clear the embedding cache
//	history   - List stored analysis records
//
// Configuration is read from a YAML file passed with --config.
package main

import (
	"fmt"
	"os"

	"github.com/naveensanjula975/VocalGuard/cmd/vocalguard/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
