package main

import (
	"github.com/spf13/cobra"
)

var (
	// repoRootFlag is the CLI --repo flag value.
	repoRootFlag string
)

var rootCmd = &cobra.Command{
	Use:   "gemcheckd",
	Short: "gemcheckd - incremental typecheck coordinator",
	Long: `gemcheckd runs the edit-committer/coordinator pair a Sorbet-style
language server sits on top of: it classifies incoming workspace edits as
fast- or slow-path, serializes access to a single typechecker thread, and
speaks the subset of LSP a client needs to drive it.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&repoRootFlag, "repo", ".",
		"repository root to load .gemcheck/config.json from")
}
