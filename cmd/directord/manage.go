package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/directord/directord/pkg/types"
)

var manageCmd = &cobra.Command{
	Use:   "manage",
	Short: "Inspect or purge coordinator-side job and worker state",
}

func init() {
	manageCmd.AddCommand(manageListJobsCmd)
	manageCmd.AddCommand(manageListNodesCmd)
	manageCmd.AddCommand(managePurgeJobsCmd)
	manageCmd.AddCommand(managePurgeNodesCmd)
}

var manageListJobsCmd = &cobra.Command{
	Use:   "list-jobs",
	Short: "List every job the coordinator has recorded",
	RunE: func(cmd *cobra.Command, args []string) error {
		socketPath, _ := cmd.Flags().GetString("socket")
		reply, err := submitManage(socketPath, "list-jobs")
		if err != nil {
			return err
		}

		var jobs []types.JobRecord
		if err := json.Unmarshal(reply, &jobs); err != nil {
			return fmt.Errorf("decoding job list: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "JOB ID\tVERB\tACCEPTED\tPROCESSING\tSUCCESS\tFAILED")
		for _, job := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%v\t%v\t%d\t%d\n",
				job.JobID, job.JobDefinition.Verb, job.Accepted, job.Processing,
				len(job.Success), len(job.Failed))
		}
		return w.Flush()
	},
}

var manageListNodesCmd = &cobra.Command{
	Use:   "list-nodes",
	Short: "List every worker the coordinator has heard from",
	RunE: func(cmd *cobra.Command, args []string) error {
		socketPath, _ := cmd.Flags().GetString("socket")
		reply, err := submitManage(socketPath, "list-nodes")
		if err != nil {
			return err
		}

		var workers []types.WorkerRecord
		if err := json.Unmarshal(reply, &workers); err != nil {
			return fmt.Errorf("decoding node list: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "IDENTITY\tVERSION\tEXPIRY\tMACHINE ID")
		for _, node := range workers {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", node.Identity, node.Version, node.Expiry.Format("15:04:05"), node.MachineID)
		}
		return w.Flush()
	},
}

var managePurgeJobsCmd = &cobra.Command{
	Use:   "purge-jobs",
	Short: "Delete every recorded job",
	RunE: func(cmd *cobra.Command, args []string) error {
		socketPath, _ := cmd.Flags().GetString("socket")
		reply, err := submitManage(socketPath, "purge-jobs")
		if err != nil {
			return err
		}
		fmt.Println(string(reply))
		return nil
	},
}

var managePurgeNodesCmd = &cobra.Command{
	Use:   "purge-nodes",
	Short: "Forget every recorded worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		socketPath, _ := cmd.Flags().GetString("socket")
		reply, err := submitManage(socketPath, "purge-nodes")
		if err != nil {
			return err
		}
		fmt.Println(string(reply))
		return nil
	},
}
