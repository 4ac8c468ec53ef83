package components

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/directord/directord/pkg/health"
	"github.com/directord/directord/pkg/types"
)

// WaitComponent blocks a job's completion on one of four conditions: a
// fixed sleep, an HTTP GET returning 2xx/3xx, a TCP dial, or a shell command
// exiting 0, each with optional retry/retry_wait.
type WaitComponent struct{}

func (c *WaitComponent) Verb() string      { return "WAIT" }
func (c *WaitComponent) Cacheable() bool   { return false }
func (c *WaitComponent) RequiresLock() bool { return false }

func (c *WaitComponent) Execute(ctx context.Context, ec *ExecContext, job types.JobItem) (Result, error) {
	retry := intArg(job.Args, "retry", 1)
	retryWait := durationArg(job.Args, "retry_wait", time.Second)

	if seconds, ok := job.Args["seconds"]; ok {
		d := durationArg(map[string]interface{}{"seconds": seconds}, "seconds", 0)
		select {
		case <-time.After(d):
			return Result{Success: true, Info: []byte(fmt.Sprintf("slept %s", d))}, nil
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	if url, ok := job.Args["url"].(string); ok && url != "" {
		return c.waitHTTP(ctx, job, url, retry, retryWait)
	}

	if address, ok := job.Args["address"].(string); ok && address != "" {
		return c.waitTCP(ctx, job, address, retry, retryWait)
	}

	if command, ok := job.Args["command"].(string); ok && command != "" {
		return c.waitExec(ctx, ec, job, command, retry, retryWait)
	}

	return Result{}, fmt.Errorf("components: WAIT job %s requires seconds, url, address, or command", job.JobID)
}

func (c *WaitComponent) waitTCP(ctx context.Context, job types.JobItem, address string, retry int, retryWait time.Duration) (Result, error) {
	checker := health.NewTCPChecker(address)
	var lastResult health.Result
	for attempt := 0; attempt <= retry; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryWait):
			case <-ctx.Done():
				return Result{}, ctx.Err()
			}
		}
		lastResult = checker.Check(ctx)
		if lastResult.Healthy {
			return Result{Success: true, Info: []byte(lastResult.Message)}, nil
		}
	}
	return Result{}, fmt.Errorf("components: WAIT job %s: %s", job.JobID, lastResult.Message)
}

func (c *WaitComponent) waitHTTP(ctx context.Context, job types.JobItem, url string, retry int, retryWait time.Duration) (Result, error) {
	client := retryablehttp.NewClient()
	client.RetryMax = retry
	client.RetryWaitMin = retryWait
	client.RetryWaitMax = retryWait
	client.Logger = nil

	if insecure, _ := job.Args["insecure"].(bool); insecure {
		client.HTTPClient.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("components: WAIT job %s building request for %s: %w", job.JobID, url, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("components: WAIT job %s polling %s: %w", job.JobID, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("components: WAIT job %s: %s returned %d", job.JobID, url, resp.StatusCode)
	}
	return Result{Success: true, Info: []byte(fmt.Sprintf("%s returned %d", url, resp.StatusCode))}, nil
}

func (c *WaitComponent) waitExec(ctx context.Context, ec *ExecContext, job types.JobItem, command string, retry int, retryWait time.Duration) (Result, error) {
	checker := health.NewExecChecker([]string{"/bin/sh", "-c", command}).WithDir(ec.WorkDir())
	var lastResult health.Result
	for attempt := 0; attempt <= retry; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryWait):
			case <-ctx.Done():
				return Result{}, ctx.Err()
			}
		}
		lastResult = checker.Check(ctx)
		if lastResult.Healthy {
			return Result{Success: true, Info: []byte(fmt.Sprintf("%q succeeded after %d attempt(s)", command, attempt+1))}, nil
		}
	}
	return Result{}, fmt.Errorf("components: WAIT job %s: %q never succeeded: %s", job.JobID, command, lastResult.Message)
}

func intArg(args map[string]interface{}, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

func durationArg(args map[string]interface{}, key string, def time.Duration) time.Duration {
	switch v := args[key].(type) {
	case int:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	default:
		return def
	}
}
