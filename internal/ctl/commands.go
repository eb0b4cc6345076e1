package ctl

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"tapty/internal/registry"
)

// NewRootCmd creates taptyctl's command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "taptyctl",
		Short:         "Query and steer a running tapty session",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newListCmd(),
		newScrollbackCmd(),
		newCursorCmd(),
		newSizeCmd(),
		newInjectCmd(),
		newTypeCmd(),
		newSubscribeCmd(),
	)
	return root
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live tapty sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := registry.Dir("")
			if err != nil {
				return err
			}
			entries, err := registry.List(dir)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", e.ID, e.PID, e.Command)
			}
			return nil
		},
	}
}

func newScrollbackCmd() *cobra.Command {
	var lines int
	c := &cobra.Command{
		Use:   "scrollback <id>",
		Short: "Print a session's scrollback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := request(args[0], map[string]any{"type": "get_scrollback", "lines": lines})
			if err != nil {
				return err
			}
			for _, l := range resp.Lines {
				fmt.Fprintln(cmd.OutOrStdout(), l)
			}
			return nil
		},
	}
	c.Flags().IntVar(&lines, "lines", 0, "number of trailing lines to print (0 = all available)")
	return c
}

func newCursorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cursor <id>",
		Short: "Print a session's cursor position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := request(args[0], map[string]any{"type": "get_cursor"})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d,%d\n", resp.Row, resp.Col)
			return nil
		},
	}
}

func newSizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "size <id>",
		Short: "Print a session's terminal size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := request(args[0], map[string]any{"type": "get_size"})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%dx%d\n", resp.Rows, resp.Cols)
			return nil
		},
	}
}

func newInjectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inject <id> <data>",
		Short: "Send raw bytes to a session's child process",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := request(args[0], map[string]any{"type": "inject", "data": args[1]})
			if err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("injection was not acknowledged")
			}
			return nil
		},
	}
}

func newTypeCmd() *cobra.Command {
	var asCommand string
	c := &cobra.Command{
		Use:   "type <id>",
		Short: "Type a shell-like command into a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if asCommand == "" {
				return fmt.Errorf("--as-command is required")
			}
			tokens, err := shlex.Split(asCommand)
			if err != nil {
				return fmt.Errorf("parsing --as-command: %w", err)
			}
			quoted := make([]string, len(tokens))
			for i, t := range tokens {
				quoted[i] = quoteToken(t)
			}
			data := strings.Join(quoted, " ") + "\n"

			resp, err := request(args[0], map[string]any{"type": "inject", "data": data})
			if err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("injection was not acknowledged")
			}
			return nil
		},
	}
	c.Flags().StringVar(&asCommand, "as-command", "", "shell-style command string to type")
	return c
}

// quoteToken wraps t in single quotes when it contains characters a
// shell would otherwise treat specially, so re-joining shlex's tokens
// reproduces the same argument boundaries on the receiving shell.
func quoteToken(t string) string {
	if t != "" && !strings.ContainsAny(t, " \t'\"\\$`!*?[](){}|&;<>~") {
		return t
	}
	return "'" + strings.ReplaceAll(t, "'", `'\''`) + "'"
}

func newSubscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe <id>",
		Short: "Stream a session's output chunks to stdout until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stop := make(chan struct{})
			return streamSubscribe(args[0], stop, func(resp wireResponse) error {
				if resp.Dropped > 0 {
					fmt.Fprintf(os.Stderr, "warning: %d chunks dropped\n", resp.Dropped)
					return nil
				}
				chunk, err := base64.StdEncoding.DecodeString(resp.Chunk)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(chunk)
				return err
			})
		},
	}
}
