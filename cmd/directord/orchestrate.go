package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/directord/directord/pkg/orchestrate"
)

var orchestrateCmd = &cobra.Command{
	Use:   "orchestrate <file.yaml> [file.yaml...]",
	Short: "Expand and submit one or more orchestration documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		socketPath, _ := cmd.Flags().GetString("socket")
		targets, _ := cmd.Flags().GetStringSlice("target")
		restrict, _ := cmd.Flags().GetStringSlice("restrict")

		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading orchestration document %s: %w", path, err)
			}

			doc, err := orchestrate.ParseDocument(data)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", path, err)
			}

			jobs, err := orchestrate.Expand(doc, targets, restrict)
			if err != nil {
				return fmt.Errorf("expanding %s: %w", path, err)
			}

			for _, job := range jobs {
				reply, err := submit(socketPath, job)
				if err != nil {
					return fmt.Errorf("submitting job %s (%s): %w", job.JobID, job.Verb, err)
				}
				fmt.Printf("%s %s: %s\n", path, job.Verb, string(reply))
			}
		}
		return nil
	},
}

func init() {
	orchestrateCmd.Flags().StringSlice("target", nil, "Override every entry's targets with this list")
	orchestrateCmd.Flags().StringSlice("restrict", nil, "Only accept jobs whose fingerprint is in this set")
}
