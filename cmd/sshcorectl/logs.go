package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newLogsCommand(flags *globalFlags) *cobra.Command {
	var host string
	var limit int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recently recorded exec/scp/pty invocations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openAudit(flags)
			if err != nil {
				return err
			}
			defer db.Close()

			if host != "" {
				recs, err := db.RecentForHost(host, limit)
				if err != nil {
					return err
				}
				for _, r := range recs {
					fmt.Println(formatInvocation(r.StartedAt, r.Kind, r.Host, r.Command, r.ExitKind, r.ExitCode, r.DurationMS, r.Error))
				}
				return nil
			}

			recs, err := db.Recent(limit)
			if err != nil {
				return err
			}
			for _, r := range recs {
				fmt.Println(formatInvocation(r.StartedAt, r.Kind, r.Host, r.Command, r.ExitKind, r.ExitCode, r.DurationMS, r.Error))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "only show invocations against this host")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of invocations to show")
	return cmd
}

func formatInvocation(startedAt time.Time, kind, host, command, exitKind string, exitCode, durationMS int64, errText string) string {
	status := fmt.Sprintf("%s=%d", exitKind, exitCode)
	line := fmt.Sprintf("%s  %-4s  %-20s  %-24s  %-14s  %dms",
		startedAt.Format(time.RFC3339), kind, host, command, status, durationMS)
	if errText != "" {
		line += "  error=" + errText
	}
	return line
}
