package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Submit and inspect pipeline tasks",
}

var taskSubmitCmd = &cobra.Command{
	Use:   "submit DESCRIPTION",
	Short: "Submit a new task to the plan stage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		c := newAPIClient(server)

		var task taskView
		if err := c.post("/api/tasks", map[string]string{"description": args[0]}, &task); err != nil {
			return err
		}

		fmt.Printf("Task submitted: %s\n", task.ID)
		fmt.Printf("  Status: %s\n", task.Status)
		fmt.Printf("  Trace ID: %s\n", task.TraceID)
		return nil
	},
}

var taskStatusCmd = &cobra.Command{
	Use:   "status ID",
	Short: "Show a task's id, description, status, mode, and trace ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		c := newAPIClient(server)

		var task taskView
		if err := c.get("/api/tasks/"+args[0], &task); err != nil {
			return err
		}

		body, err := json.MarshalIndent(task, "", "  ")
		if err != nil {
			return fmt.Errorf("format task: %w", err)
		}
		fmt.Println(string(body))
		return nil
	},
}

var taskLogsCmd = &cobra.Command{
	Use:   "logs ID",
	Short: "Show a task's recorded event history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		c := newAPIClient(server)

		var history struct {
			TaskID string           `json:"task_id"`
			Events []json.RawMessage `json:"events"`
		}
		if err := c.get("/api/logs/"+args[0], &history); err != nil {
			return err
		}

		for _, e := range history.Events {
			fmt.Println(string(e))
		}
		return nil
	},
}

// taskView mirrors the subset of store.Task the CLI displays.
type taskView struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Mode        string `json:"mode"`
	TraceID     string `json:"trace_id"`
}

func init() {
	taskCmd.AddCommand(taskSubmitCmd)
	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskLogsCmd)
}
