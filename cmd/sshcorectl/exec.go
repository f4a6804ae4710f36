package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"go.olrik.dev/sshcore"
	"go.olrik.dev/sshcore/internal/audit"
)

func newExecCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <profile> -- <command> [args...]",
		Short: "Run a command on a profile's host and exit with its status",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(flags, args[0], args[1:])
		},
	}
	return cmd
}

func runExec(flags *globalFlags, profileName string, argv []string) error {
	ctx := context.Background()

	p, err := resolveProfile(flags, profileName)
	if err != nil {
		return err
	}

	sess, err := buildSession(ctx, p)
	if err != nil {
		return err
	}
	defer sess.Close()

	start := time.Now()
	status, err := sess.Exec(ctx, argv)
	duration := time.Since(start)

	logInvocation(flags, audit.Invocation{
		Kind:       "exec",
		Host:       p.Host,
		User:       p.User,
		Command:    strings.Join(argv, " "),
		ExitCode:   int64(exitCodeOf(status)),
		ExitKind:   exitKindOf(status),
		DurationMS: duration.Milliseconds(),
		StartedAt:  start,
		Error:      errString(err),
	})

	if err != nil {
		return err
	}
	os.Exit(int(status.ToProcessCode()))
	return nil
}

func exitCodeOf(status sshcore.ExitStatus) uint32 {
	if status == nil {
		return 255
	}
	return status.ToProcessCode()
}

func exitKindOf(status sshcore.ExitStatus) string {
	switch status.(type) {
	case sshcore.ExitCode:
		return "code"
	case sshcore.ExitSignal:
		return "signal"
	default:
		return "channel_closed"
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func logInvocation(flags *globalFlags, inv audit.Invocation) {
	db, err := openAudit(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sshcorectl: audit log unavailable: %v\n", err)
		return
	}
	defer db.Close()
	if err := db.Log(inv); err != nil {
		fmt.Fprintf(os.Stderr, "sshcorectl: failed to record invocation: %v\n", err)
	}
}
