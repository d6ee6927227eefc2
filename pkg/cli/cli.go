package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version may be overridden at build-time with -ldflags "-X github.com/jlrickert/repodex/pkg/cli.Version=..."
var Version = "dev"

// Run executes the repodex command tree against the process streams. The
// returned code is 130 when the context was cancelled and 1 on any other
// error.
func Run(ctx context.Context, args []string) (int, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := &Deps{}
	cmd := NewRootCmd(deps)
	cmd.SetArgs(args)
	cmd.SetIn(os.Stdin)
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	err := cmd.ExecuteContext(ctx)
	deps.Shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, "repodex:", renderUserError(err, deps))
		if errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) {
			return 130, err
		}
		return 1, err
	}
	return 0, nil
}
