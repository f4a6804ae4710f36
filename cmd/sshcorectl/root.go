// Command sshcorectl is a thin cobra front end over the sshcore library:
// it resolves a named profile (internal/profile), fills in secrets
// (internal/secret), runs one operation, and records it (internal/audit).
// The library does the work; this package only wires flags to it.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"go.olrik.dev/sshcore/internal/audit"
	"go.olrik.dev/sshcore/internal/profile"
)

// globalFlags holds the persistent flags every subcommand shares.
type globalFlags struct {
	profileDir string
	auditPath  string
	verbose    bool
}

func newRootCommand() *cobra.Command {
	var flags globalFlags
	homeDir, _ := os.UserHomeDir()

	root := &cobra.Command{
		Use:   "sshcorectl",
		Short: "sshcorectl - exec, upload, and interact over SSH using sshcore",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if flags.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
				Level:      level,
				TimeFormat: time.DateTime,
			})))
		},
	}

	root.PersistentFlags().StringVar(&flags.profileDir, "profile-dir",
		filepath.Join(homeDir, ".config", "sshcorectl", "profiles.d"),
		"directory of *.hcl profile files")
	root.PersistentFlags().StringVar(&flags.auditPath, "audit-db",
		filepath.Join(homeDir, ".local", "share", "sshcorectl", "audit.db"),
		"path to the invocation audit database")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newExecCommand(&flags),
		newRunCommand(&flags),
		newScpCommand(&flags),
		newLogsCommand(&flags),
	)

	return root
}

// resolveProfile loads profileDir and looks up name, producing a readable
// error if it is missing.
func resolveProfile(flags *globalFlags, name string) (*profile.Profile, error) {
	store, err := profile.LoadDir(flags.profileDir)
	if err != nil {
		return nil, fmt.Errorf("loading profiles from %s: %w", flags.profileDir, err)
	}
	p, ok := store.Get(name)
	if !ok {
		return nil, fmt.Errorf("no profile named %q in %s", name, flags.profileDir)
	}
	return p, nil
}

func openAudit(flags *globalFlags) (*audit.DB, error) {
	return audit.Open(flags.auditPath)
}
