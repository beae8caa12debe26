// Package process runs short-lived external commands with bounded time
// and output.
//
// The store's mounted backend uses it to remount a read-only filesystem
// read-write around each save. Commands run in their own process group,
// so a timeout terminates the whole group: SIGTERM first, then SIGKILL
// after the command's grace period.
//
// Example usage:
//
//	runner := process.NewRunner()
//	res, err := runner.Run(ctx, process.Command{
//	    Name:    "remount-rw",
//	    Argv:    []string{"mount", "-o", "remount,rw", "/"},
//	    Timeout: 10 * time.Second,
//	})
//	if errors.Is(err, process.ErrCommandFailed) {
//	    log.Printf("exit %d: %s", res.ExitCode, res.Output)
//	}
package process
