package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"go.olrik.dev/sshcore"
	"go.olrik.dev/sshcore/internal/audit"
)

func newRunCommand(flags *globalFlags) *cobra.Command {
	var command string

	cmd := &cobra.Command{
		Use:   "run <profile>",
		Short: "Open an interactive PTY session against a profile's host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(flags, args[0], command)
		},
	}
	cmd.Flags().StringVarP(&command, "command", "c", "", "run this command instead of the remote default shell")
	return cmd
}

func runInteractive(flags *globalFlags, profileName, command string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	p, err := resolveProfile(flags, profileName)
	if err != nil {
		return err
	}

	sess, err := buildSession(ctx, p)
	if err != nil {
		return err
	}
	defer sess.Close()

	client, err := sess.Client()
	if err != nil {
		return err
	}

	pty, err := sshcore.NewPTY(ctx, client, sshcore.PTYOptions{Command: command}, false, false)
	if err != nil {
		return fmt.Errorf("opening pty: %w", err)
	}

	start := time.Now()
	code, err := sshcore.RunInteractive(ctx, pty, sshcore.RunOptions{RawMode: true, AutoResize: true})
	duration := time.Since(start)

	displayCommand := command
	if displayCommand == "" {
		displayCommand = strings.Join(p.Cmd, " ")
	}
	logInvocation(flags, audit.Invocation{
		Kind:       "pty",
		Host:       p.Host,
		User:       p.User,
		Command:    displayCommand,
		ExitCode:   int64(code),
		ExitKind:   "code",
		DurationMS: duration.Milliseconds(),
		StartedAt:  start,
		Error:      errString(err),
	})

	if err != nil {
		return err
	}
	os.Exit(int(code))
	return nil
}
