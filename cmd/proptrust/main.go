// Command proptrust is the CLI driver for one-off verification work against
// the same engine the daemon serves.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/proptrust/proptrust/internal/common"
)

// CLI exit codes.
const (
	exitOK       = 0
	exitBadInput = 2
	exitExternal = 3
	exitLedger   = 4
	exitInternal = 5
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	root := &cobra.Command{
		Use:           "proptrust",
		Short:         "Verify land-record documents and anchor their fingerprints",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newVerifyCmd(logger),
		newTamperCmd(logger),
		newLedgerStatusCmd(logger),
		newExportCmd(logger),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps the engine error taxonomy onto shell exit codes.
func exitCode(err error) int {
	var ae *common.AppError
	if !errors.As(err, &ae) {
		return exitInternal
	}
	switch ae.Kind {
	case common.KindBadInput, common.KindNotFound:
		return exitBadInput
	case common.KindExternalUnavailable, common.KindDeadlineExceeded:
		return exitExternal
	case common.KindLedgerRejected:
		return exitLedger
	default:
		return exitInternal
	}
}
