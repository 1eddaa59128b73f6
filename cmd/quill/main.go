package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ehrlich-b/quill/internal/config"
	"github.com/ehrlich-b/quill/internal/editor"
	"github.com/ehrlich-b/quill/internal/logger"
	"github.com/ehrlich-b/quill/internal/protocol"
)

func main() {
	var configDir string

	root := &cobra.Command{
		Use:   "quill <coordinator_pid> <username>",
		Short: "quill editor — collaborative Markdown editing client",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.Atoi(args[0])
			if err != nil || pid <= 0 {
				return fmt.Errorf("coordinator pid must be a positive integer")
			}
			username := args[1]

			cfg, err := config.Load(configDir)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			// Log to file only: stdout belongs to document output.
			if err := logger.Init(cfg.LogLevel, cfg.LogFile, false); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			ed, err := editor.Connect(cfg.SocketPath(pid), username, os.Stdout)
			if err != nil {
				if errors.Is(err, editor.ErrRejected) {
					fmt.Println(protocol.RejectUnauthorised)
					os.Exit(1)
				}
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			readerErr := make(chan error, 1)
			go func() {
				readerErr <- ed.Run(ctx)
			}()

			inputDone := make(chan struct{})
			go func() {
				defer close(inputDone)
				runInput(ed, os.Stdin, os.Stdout)
			}()

			select {
			case err := <-readerErr:
				if err != nil {
					return fmt.Errorf("connection lost: %w", err)
				}
				return nil
			case <-inputDone:
				return nil
			}
		},
	}

	root.Flags().StringVar(&configDir, "config-dir", ".", "directory containing quill.yaml")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runInput dispatches stdin lines: the replica answers DOC?, PERM? and LOG?
// locally; DISCONNECT ends the session; everything else goes to the
// coordinator. Read-only users get their mutating commands refused here —
// the coordinator enforces regardless.
func runInput(ed *editor.Editor, in *os.File, out *os.File) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		switch line {
		case protocol.CmdDocQuery:
			version, body := ed.Snapshot()
			fmt.Fprintf(out, "%d\n%s\n", version, body)
		case protocol.CmdPermQuery:
			fmt.Fprintln(out, ed.Role.String())
		case "LOG?":
			ed.PrintLog(out)
		case protocol.CmdDisconnect:
			ed.Disconnect()
			return
		default:
			if ed.Role != protocol.RoleWrite && protocol.IsMutatingWord(line) {
				fmt.Fprintln(out, "Reject UNAUTHORISED")
				continue
			}
			if err := ed.Send(line); err != nil {
				fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
				return
			}
		}
	}
	ed.Disconnect()
}
