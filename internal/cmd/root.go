// Package cmd builds tapty's own command tree. Unlike the control CLI
// in internal/ctl, tapty has exactly one command: spawn the requested
// program (or the user's shell) behind a PTY and forward bytes until
// it exits. Flag parsing is disabled so any flag the caller meant for
// the child program passes straight through instead of being claimed
// by cobra.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"tapty/internal/session"
)

// NewRootCmd creates tapty's root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:                "tapty [command] [args...]",
		Short:              "Transparent PTY wrapper with a queryable terminal model",
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := session.Run(args)
			if err != nil {
				return err
			}
			os.Exit(code)
			return nil
		},
	}
	return rootCmd
}
