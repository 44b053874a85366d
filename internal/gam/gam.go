// Package gam invokes the GAM directory CLI as a subprocess and parses its
// bulk CSV listings and nested single-device reports.
package gam

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os/exec"
	"strings"
	"time"
)

// Result is the outcome of one CLI invocation.
type Result struct {
	Success  bool
	Output   string
	Error    string
	ExitCode int
}

// Runner executes a CLI command with a bounded timeout.
type Runner interface {
	Run(ctx context.Context, args []string, timeout time.Duration) Result
}

// CommandRunner runs commands by prepending a fixed argv prefix.
// For production use the prefix is the docker-exec'd GAM binary; tests can
// substitute any local command.
type CommandRunner struct {
	Prefix []string
}

// NewDockerRunner returns a runner that executes the GAM binary inside the
// given docker container.
func NewDockerRunner(container, gamPath string) *CommandRunner {
	return &CommandRunner{Prefix: []string{"docker", "exec", container, gamPath}}
}

// Run executes the command and captures stdout/stderr. A timeout is treated
// the same as any other process failure: Success false with the cause in
// Error. ExitCode is -1 when the process did not run or was killed.
func (r *CommandRunner) Run(ctx context.Context, args []string, timeout time.Duration) Result {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := append(append([]string{}, r.Prefix...), args...)
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Output: stdout.String(),
		Error:  stderr.String(),
	}

	switch {
	case err == nil:
		res.Success = true
		res.ExitCode = 0
		log.Printf("gam: command ok: %s (output %d bytes)", strings.Join(args, " "), len(res.Output))
	case runCtx.Err() != nil:
		res.ExitCode = -1
		res.Error = "timed out after " + timeout.String()
		log.Printf("gam: command timed out: %s", strings.Join(args, " "))
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
		}
		if res.Error == "" {
			res.Error = err.Error()
		}
		log.Printf("gam: command failed (exit %d): %s: %s", res.ExitCode, strings.Join(args, " "), res.Error)
	}
	return res
}

// Client issues the logical GAM queries the sync jobs need.
type Client struct {
	runner      Runner
	timeout     time.Duration
	bulkTimeout time.Duration
}

// NewClient returns a client using the given runner and timeouts.
// timeout applies to single-device queries, bulkTimeout to fleet listings.
func NewClient(runner Runner, timeout, bulkTimeout time.Duration) *Client {
	return &Client{runner: runner, timeout: timeout, bulkTimeout: bulkTimeout}
}

// AllChromebooks lists every managed device with serial number and asset id
// as CSV. Uses the extended bulk timeout.
func (c *Client) AllChromebooks(ctx context.Context) Result {
	return c.runner.Run(ctx, []string{
		"config", "csv_output_header_filter", "serialNumber,annotatedAssetId",
		"print", "cros", "fields", "serialnumber,annotatedAssetId",
	}, c.bulkTimeout)
}

// ChromebooksByOUs lists devices under the given OU paths (children
// included) with serial number and asset id as CSV. Uses the extended bulk
// timeout.
func (c *Client) ChromebooksByOUs(ctx context.Context, ous []string) Result {
	return c.runner.Run(ctx, []string{
		"config", "csv_output_header_filter", "serialNumber,annotatedAssetId",
		"print", "cros",
		"cros_ous_and_children", strings.Join(ous, ","),
		"fields", "serialnumber,annotatedAssetId",
	}, c.bulkTimeout)
}

// ChromebookLastUser fetches the nested single-device report holding the
// device's most recent user. Uses the default timeout.
func (c *Client) ChromebookLastUser(ctx context.Context, serialNumber string) Result {
	return c.runner.Run(ctx, []string{
		"info", "cros", "cros_sn", serialNumber,
		"recentusers", "listlimit", "1",
	}, c.timeout)
}
