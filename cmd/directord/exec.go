package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/directord/directord/pkg/types"
)

var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Submit a single job to the coordinator",
}

func init() {
	execCmd.PersistentFlags().StringSlice("target", nil, "Restrict execution to these worker identities (repeatable)")
	execCmd.PersistentFlags().Bool("run-once", false, "Force the job to run on only the first resolved target")
	execCmd.PersistentFlags().Bool("skip-cache", false, "Skip the worker-side fingerprint cache for this job")
	execCmd.PersistentFlags().Int("timeout", types.DefaultTimeout, "Job timeout in seconds")
	execCmd.PersistentFlags().Bool("return-raw", false, "Print only the assigned job ID")
	execCmd.PersistentFlags().StringSlice("restrict", nil, "Only accept this submission if its fingerprint is in this set")

	execCmd.AddCommand(execRunCmd)
	execCmd.AddCommand(execCopyCmd)
	execCmd.AddCommand(execAddCmd)
	execCmd.AddCommand(execArgCmd)
	execCmd.AddCommand(execEnvCmd)
	execCmd.AddCommand(execWorkdirCmd)
	execCmd.AddCommand(execCacheFileCmd)
	execCmd.AddCommand(execCacheEvictCmd)
	execCmd.AddCommand(execQueryCmd)
	execCmd.AddCommand(execWaitCmd)
}

var execRunCmd = &cobra.Command{
	Use:   "run -- <command...>",
	Short: "Run a shell command on the target workers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stdoutArg, _ := cmd.Flags().GetString("stdout-arg")
		job := newJob(cmd, "RUN", map[string]interface{}{
			"command": strings.Join(args, " "),
		})
		if stdoutArg != "" {
			job.Args["stdout_arg"] = stdoutArg
		}
		return submitJob(cmd, job)
	},
}

func init() {
	execRunCmd.Flags().String("stdout-arg", "", "Cache this command's stdout under the given argument name")
}

func execCopyOrAdd(verb string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return fmt.Errorf("%s requires exactly FROM and TO arguments", strings.ToLower(verb))
		}
		from, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving source path: %w", err)
		}
		if _, err := os.Stat(from); err != nil {
			return fmt.Errorf("source file %s: %w", from, err)
		}

		chown, _ := cmd.Flags().GetString("chown")
		blueprint, _ := cmd.Flags().GetBool("blueprint")

		payload := map[string]interface{}{
			"files": []map[string]string{{"from": from, "to": args[1]}},
			"blueprint": blueprint,
		}
		if chown != "" {
			parts := strings.SplitN(chown, ":", 2)
			payload["user"] = parts[0]
			if len(parts) == 2 {
				payload["group"] = parts[1]
			}
		}

		job := newJob(cmd, verb, payload)
		return submitJob(cmd, job)
	}
}

var execCopyCmd = &cobra.Command{
	Use:   "copy <from> <to>",
	Short: "Copy a local file to the target workers, skipping unchanged content",
	Args:  cobra.ExactArgs(2),
	RunE:  execCopyOrAdd("COPY"),
}

var execAddCmd = &cobra.Command{
	Use:   "add <from> <to>",
	Short: "Copy a local file to the target workers with mode 0755",
	Args:  cobra.ExactArgs(2),
	RunE:  execCopyOrAdd("ADD"),
}

func init() {
	for _, c := range []*cobra.Command{execCopyCmd, execAddCmd} {
		c.Flags().String("chown", "", "Ownership as user[:group]; accepted, but COPY/ADD does not change file ownership")
		c.Flags().Bool("blueprint", false, "Accepted, but COPY/ADD writes the file contents as pulled, without template rendering")
	}
}

func execArgOrEnv(verb, key string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		job := newJob(cmd, verb, map[string]interface{}{
			key: map[string]string{args[0]: args[1]},
		})
		return submitJob(cmd, job)
	}
}

var execArgCmd = &cobra.Command{
	Use:   "arg <key> <value>",
	Short: "Cache a build argument on the target workers",
	Args:  cobra.ExactArgs(2),
	RunE:  execArgOrEnv("ARG", "values"),
}

var execEnvCmd = &cobra.Command{
	Use:   "env <key> <value>",
	Short: "Cache an environment variable on the target workers",
	Args:  cobra.ExactArgs(2),
	RunE:  execArgOrEnv("ENV", "values"),
}

var execWorkdirCmd = &cobra.Command{
	Use:   "workdir <path>",
	Short: "Create a working directory on the target workers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitJob(cmd, newJob(cmd, "WORKDIR", map[string]interface{}{"path": args[0]}))
	},
}

var execCacheFileCmd = &cobra.Command{
	Use:   "cachefile <path>",
	Short: "Load a cached file on the target workers and merge it into ARGs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitJob(cmd, newJob(cmd, "CACHEFILE", map[string]interface{}{"file": args[0]}))
	},
}

var execCacheEvictCmd = &cobra.Command{
	Use:   "cacheevict <tag|all>",
	Short: "Evict tagged cached items from the target workers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitJob(cmd, newJob(cmd, "CACHEEVICT", map[string]interface{}{"tag": args[0]}))
	},
}

var execQueryCmd = &cobra.Command{
	Use:   "query <key>",
	Short: "Scan target workers for a cached argument and fan the results back out",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitJob(cmd, newJob(cmd, "QUERY", map[string]interface{}{"key": args[0]}))
	},
}

var execWaitCmd = &cobra.Command{
	Use:   "wait <fingerprint>",
	Short: "Block on a remote job_wait/query_wait coordination point",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitJob(cmd, newJob(cmd, "WAIT", map[string]interface{}{"wait": args[0]}))
	},
}

// newJob builds a types.JobItem from the exec command's persistent flags and
// a verb-specific argument payload.
func newJob(cmd *cobra.Command, verb string, jobArgs map[string]interface{}) types.JobItem {
	targets, _ := cmd.Flags().GetStringSlice("target")
	restrict, _ := cmd.Flags().GetStringSlice("restrict")
	runOnce, _ := cmd.Flags().GetBool("run-once")
	skipCache, _ := cmd.Flags().GetBool("skip-cache")
	timeout, _ := cmd.Flags().GetInt("timeout")
	returnRaw, _ := cmd.Flags().GetBool("return-raw")

	return types.JobItem{
		Verb:      verb,
		Targets:   targets,
		Restrict:  restrict,
		RunOnce:   runOnce,
		SkipCache: skipCache,
		Timeout:   timeout,
		ReturnRaw: returnRaw,
		Args:      jobArgs,
	}
}

// submitJob sends job to the coordinator's management socket and prints the
// reply to stdout.
func submitJob(cmd *cobra.Command, job types.JobItem) error {
	socketPath, _ := cmd.Flags().GetString("socket")
	reply, err := submit(socketPath, job)
	if err != nil {
		return err
	}
	fmt.Println(string(reply))
	return nil
}
