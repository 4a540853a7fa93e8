package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lull/internal/config"
	"lull/internal/ipc"
)

type sendFunc func(path string, msg ipc.ControlMessage) (ipc.Reply, error)

func main() {
	if err := newRootCmd(ipc.Send).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(send sendFunc) *cobra.Command {
	var socket string

	root := &cobra.Command{
		Use:          "lull-ctl",
		Short:        "Control a running lull-daemon",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&socket, "socket", "s", config.DefaultSocketPath, "Control socket path")

	run := func(cmd *cobra.Command, msg ipc.ControlMessage) error {
		reply, err := send(socket, msg)
		if err != nil {
			return fmt.Errorf("lull-daemon not running: %w", err)
		}
		if reply.Error != "" {
			return errors.New(reply.Error)
		}
		if reply.Text != "" {
			fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
		}
		return nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "say <text>",
			Short: "Send a typed command to the assistant",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, ipc.ControlMessage{Cmd: ipc.CmdSay, Text: strings.Join(args, " ")})
			},
		},
		&cobra.Command{
			Use:   "trigger",
			Short: "Record one spoken command from the microphone",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, ipc.ControlMessage{Cmd: ipc.CmdTrigger})
			},
		},
		&cobra.Command{
			Use:   "stop",
			Short: "Stop speaking",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, ipc.ControlMessage{Cmd: ipc.CmdStop})
			},
		},
	)

	return root
}
