package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// supervisorCmd groups supervisor lifecycle commands
var supervisorCmd = &cobra.Command{
	Use:   "supervisor",
	Short: "Control the supervision engine",
}

var supervisorStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start supervising all enabled targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSupervisorToggle("start")
	},
}

var supervisorStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop all supervision",
	Long:  `Stop every watch loop. Processes already running are left alone; only supervision stops.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSupervisorToggle("stop")
	},
}

func init() {
	rootCmd.AddCommand(supervisorCmd)
	supervisorCmd.AddCommand(supervisorStartCmd)
	supervisorCmd.AddCommand(supervisorStopCmd)
}

func runSupervisorToggle(action string) error {
	body, status, err := apiRequest("POST", "/supervisor/"+action, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", status, string(body))
	}

	var result struct {
		Running bool `json:"running"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if result.Running {
		fmt.Println("Supervisor running")
	} else {
		fmt.Println("Supervisor stopped")
	}
	return nil
}
