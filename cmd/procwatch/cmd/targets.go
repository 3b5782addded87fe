package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	addArguments     string
	addWorkingDir    string
	addCheckInterval int
	addRestartDelay  int
	addDisabled      bool
	historyLimit     int
	exportFile       string
	importFile       string
)

// targetsCmd represents the targets command
var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Manage supervised targets",
	Long:  `Commands for listing, adding, removing, and toggling the executables the daemon keeps alive.`,
}

var targetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all targets",
	RunE:  runTargetsList,
}

var targetsAddCmd = &cobra.Command{
	Use:   "add <name> <executable-path>",
	Short: "Add a target",
	Long:  `Register a new target with the daemon. Supervision of the new target begins immediately when the supervisor is running.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runTargetsAdd,
}

var targetsRemoveCmd = &cobra.Command{
	Use:   "remove <target-id>",
	Short: "Remove a target",
	Args:  cobra.ExactArgs(1),
	RunE:  runTargetsRemove,
}

var targetsEnableCmd = &cobra.Command{
	Use:   "enable <target-id>",
	Short: "Enable supervision for a target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTargetsSetEnabled(args[0], true)
	},
}

var targetsDisableCmd = &cobra.Command{
	Use:   "disable <target-id>",
	Short: "Disable supervision for a target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTargetsSetEnabled(args[0], false)
	},
}

var targetsDescribeCmd = &cobra.Command{
	Use:   "describe <target-id>",
	Short: "Show detailed information about a target",
	Args:  cobra.ExactArgs(1),
	RunE:  runTargetsDescribe,
}

var targetsHistoryCmd = &cobra.Command{
	Use:   "history <target-id>",
	Short: "Show the restart history of a target",
	Args:  cobra.ExactArgs(1),
	RunE:  runTargetsHistory,
}

var targetsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all targets as YAML",
	Long:  `Write the daemon's target catalog as a YAML targets section, suitable for pasting into the daemon config file.`,
	RunE:  runTargetsExport,
}

var targetsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import targets from a YAML file",
	RunE:  runTargetsImport,
}

func init() {
	rootCmd.AddCommand(targetsCmd)
	targetsCmd.AddCommand(targetsListCmd)
	targetsCmd.AddCommand(targetsAddCmd)
	targetsCmd.AddCommand(targetsRemoveCmd)
	targetsCmd.AddCommand(targetsEnableCmd)
	targetsCmd.AddCommand(targetsDisableCmd)
	targetsCmd.AddCommand(targetsDescribeCmd)
	targetsCmd.AddCommand(targetsHistoryCmd)
	targetsCmd.AddCommand(targetsExportCmd)
	targetsCmd.AddCommand(targetsImportCmd)

	targetsAddCmd.Flags().StringVar(&addArguments, "args", "", "arguments passed to the executable on relaunch")
	targetsAddCmd.Flags().StringVar(&addWorkingDir, "workdir", "", "working directory (default: executable's directory)")
	targetsAddCmd.Flags().IntVar(&addCheckInterval, "check-interval", 0, "seconds between liveness checks (default: daemon setting)")
	targetsAddCmd.Flags().IntVar(&addRestartDelay, "restart-delay", 0, "seconds to wait before relaunching (default: daemon setting)")
	targetsAddCmd.Flags().BoolVar(&addDisabled, "disabled", false, "register the target without supervising it")

	targetsHistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of events to show")

	targetsExportCmd.Flags().StringVar(&exportFile, "file", "", "write to file instead of stdout")
	targetsImportCmd.Flags().StringVar(&importFile, "file", "", "YAML file to import (required)")
	targetsImportCmd.MarkFlagRequired("file")
}

type targetInfo struct {
	ID                   string     `json:"id" yaml:"-"`
	Name                 string     `json:"name" yaml:"name"`
	ExecutablePath       string     `json:"executable_path" yaml:"executable_path"`
	Arguments            string     `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	WorkingDir           string     `json:"working_dir,omitempty" yaml:"working_dir,omitempty"`
	CheckIntervalSeconds int        `json:"check_interval_seconds" yaml:"check_interval_seconds"`
	RestartDelaySeconds  int        `json:"restart_delay_seconds" yaml:"restart_delay_seconds"`
	Enabled              bool       `json:"enabled" yaml:"enabled"`
	Status               string     `json:"status" yaml:"-"`
	LastRestart          *time.Time `json:"last_restart,omitempty" yaml:"-"`
}

type targetsListResponse struct {
	Targets []targetInfo `json:"targets"`
	Count   int          `json:"count"`
}

type restartEvent struct {
	TargetID   string    `json:"target_id"`
	TargetName string    `json:"target_name"`
	Timestamp  time.Time `json:"timestamp"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

type historyResponse struct {
	Events []restartEvent `json:"events"`
	Count  int            `json:"count"`
}

func apiRequest(method, path string, body io.Reader) ([]byte, int, error) {
	httpReq, err := CreateAuthenticatedRequest(method, GetServerURL()+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to connect to daemon API: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

func runTargetsList(cmd *cobra.Command, args []string) error {
	body, status, err := apiRequest("GET", "/targets", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", status, string(body))
	}

	var result targetsListResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if len(result.Targets) == 0 {
		fmt.Println("No targets registered")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Status", "Enabled", "Interval", "Delay", "Last Restart")

	for _, t := range result.Targets {
		lastRestart := "never"
		if t.LastRestart != nil {
			lastRestart = t.LastRestart.Local().Format("2006-01-02 15:04:05")
		}
		table.Append(
			t.ID,
			t.Name,
			t.Status,
			fmt.Sprintf("%v", t.Enabled),
			fmt.Sprintf("%ds", t.CheckIntervalSeconds),
			fmt.Sprintf("%ds", t.RestartDelaySeconds),
			lastRestart,
		)
	}

	table.Render()
	fmt.Printf("\nTotal targets: %d\n", result.Count)
	return nil
}

func runTargetsAdd(cmd *cobra.Command, args []string) error {
	enabled := !addDisabled
	req := map[string]interface{}{
		"name":            args[0],
		"executable_path": args[1],
		"enabled":         &enabled,
	}
	if addArguments != "" {
		req["arguments"] = addArguments
	}
	if addWorkingDir != "" {
		req["working_dir"] = addWorkingDir
	}
	if addCheckInterval > 0 {
		req["check_interval_seconds"] = addCheckInterval
	}
	if addRestartDelay > 0 {
		req["restart_delay_seconds"] = addRestartDelay
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	body, status, err := apiRequest("POST", "/targets", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("API error (status %d): %s", status, string(body))
	}

	var t targetInfo
	if err := json.Unmarshal(body, &t); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if IsJSONOutput() {
		output, _ := json.MarshalIndent(t, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Target %s added (ID: %s)\n", t.Name, t.ID)
	}
	return nil
}

func runTargetsRemove(cmd *cobra.Command, args []string) error {
	body, status, err := apiRequest("DELETE", "/targets/"+args[0], nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return fmt.Errorf("API error (status %d): %s", status, string(body))
	}
	fmt.Printf("Target %s removed\n", args[0])
	return nil
}

func runTargetsSetEnabled(id string, enabled bool) error {
	action := "disable"
	if enabled {
		action = "enable"
	}

	body, status, err := apiRequest("POST", fmt.Sprintf("/targets/%s/%s", id, action), nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", status, string(body))
	}

	var t targetInfo
	if err := json.Unmarshal(body, &t); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	fmt.Printf("Target %s %sd\n", t.Name, action)
	return nil
}

func runTargetsDescribe(cmd *cobra.Command, args []string) error {
	body, status, err := apiRequest("GET", "/targets/"+args[0], nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", status, string(body))
	}

	var t targetInfo
	if err := json.Unmarshal(body, &t); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Property", "Value")

	table.Append("ID", t.ID)
	table.Append("Name", t.Name)
	table.Append("Executable", t.ExecutablePath)
	if t.Arguments != "" {
		table.Append("Arguments", t.Arguments)
	}
	if t.WorkingDir != "" {
		table.Append("Working Dir", t.WorkingDir)
	}
	table.Append("Check Interval", fmt.Sprintf("%ds", t.CheckIntervalSeconds))
	table.Append("Restart Delay", fmt.Sprintf("%ds", t.RestartDelaySeconds))
	table.Append("Enabled", fmt.Sprintf("%v", t.Enabled))
	table.Append("Status", t.Status)
	if t.LastRestart != nil {
		table.Append("Last Restart", t.LastRestart.Local().Format("2006-01-02 15:04:05"))
	} else {
		table.Append("Last Restart", "never")
	}

	table.Render()
	return nil
}

func runTargetsHistory(cmd *cobra.Command, args []string) error {
	path := fmt.Sprintf("/targets/%s/history?limit=%d", args[0], historyLimit)
	body, status, err := apiRequest("GET", path, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", status, string(body))
	}

	var result historyResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if len(result.Events) == 0 {
		fmt.Println("No restart events recorded")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Timestamp", "Result", "Error")

	for _, e := range result.Events {
		outcome := "success"
		if !e.Success {
			outcome = "failed"
		}
		table.Append(e.Timestamp.Local().Format("2006-01-02 15:04:05"), outcome, e.Error)
	}

	table.Render()
	fmt.Printf("\nTotal events: %d\n", result.Count)
	return nil
}

// exportDoc matches the daemon config file's targets section
type exportDoc struct {
	Targets []targetInfo `yaml:"targets"`
}

func runTargetsExport(cmd *cobra.Command, args []string) error {
	body, status, err := apiRequest("GET", "/targets", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", status, string(body))
	}

	var result targetsListResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	data, err := yaml.Marshal(exportDoc{Targets: result.Targets})
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if exportFile == "" {
		fmt.Print(string(data))
		return nil
	}
	if err := os.WriteFile(exportFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportFile, err)
	}
	fmt.Printf("Exported %d targets to %s\n", len(result.Targets), exportFile)
	return nil
}

func runTargetsImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(importFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", importFile, err)
	}

	var doc exportDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", importFile, err)
	}

	imported := 0
	for _, t := range doc.Targets {
		req := map[string]interface{}{
			"name":            t.Name,
			"executable_path": t.ExecutablePath,
			"enabled":         &t.Enabled,
		}
		if t.Arguments != "" {
			req["arguments"] = t.Arguments
		}
		if t.WorkingDir != "" {
			req["working_dir"] = t.WorkingDir
		}
		if t.CheckIntervalSeconds > 0 {
			req["check_interval_seconds"] = t.CheckIntervalSeconds
		}
		if t.RestartDelaySeconds > 0 {
			req["restart_delay_seconds"] = t.RestartDelaySeconds
		}

		payload, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}

		body, status, err := apiRequest("POST", "/targets", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		if status != http.StatusCreated {
			fmt.Fprintf(os.Stderr, "Skipping %s: API error (status %d): %s\n", t.Name, status, string(body))
			continue
		}
		imported++
	}

	fmt.Printf("Imported %d of %d targets\n", imported, len(doc.Targets))
	return nil
}
