package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"go.olrik.dev/sshcore/internal/audit"
	"go.olrik.dev/sshcore/internal/profile"
)

func newScpCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "scp <profile> <local-file> <remote-path>",
		Short: "Upload a file to a profile's host via the SCP sink protocol",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScp(flags, args[0], args[1], args[2])
		},
	}
}

func runScp(flags *globalFlags, profileName, localPath, remotePath string) error {
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
	err = sess.UploadFile(ctx, localPath, remotePath)
	logScpInvocation(flags, p, localPath, remotePath, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("uploading %s to %s:%s: %w", localPath, p.Host, remotePath, err)
	}
	fmt.Printf("uploaded %s to %s:%s\n", localPath, p.Host, remotePath)
	return nil
}

func logScpInvocation(flags *globalFlags, p *profile.Profile, localPath, remotePath string, duration time.Duration, err error) {
	exitKind := "code"
	var exitCode int64
	if err != nil {
		exitKind = "channel_closed"
		exitCode = 255
	}
	logInvocation(flags, audit.Invocation{
		Kind:       "scp",
		Host:       p.Host,
		User:       p.User,
		Command:    fmt.Sprintf("%s -> %s", localPath, remotePath),
		ExitCode:   exitCode,
		ExitKind:   exitKind,
		DurationMS: duration.Milliseconds(),
		StartedAt:  time.Now().Add(-duration),
		Error:      errString(err),
	})
}
