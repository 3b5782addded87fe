package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

var (
	statusMetrics    bool
	statusMetricsURL string
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and target status",
	Long:  `Display the supervisor state, the status of every target, and host resource usage as reported by the daemon.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusMetrics, "metrics", false, "include a summary of the daemon's Prometheus metrics")
	statusCmd.Flags().StringVar(&statusMetricsURL, "metrics-url", "http://localhost:9187", "metrics endpoint base URL")
}

type statusResponse struct {
	SupervisorRunning bool         `json:"supervisor_running"`
	ActiveLoops       []string     `json:"active_loops"`
	Targets           []targetInfo `json:"targets"`
	TargetCount       int          `json:"target_count"`
	UptimeSeconds     int64        `json:"uptime_seconds"`
	Host              *hostInfo    `json:"host,omitempty"`
}

type hostInfo struct {
	CPUPercent        float64 `json:"cpu_percent"`
	MemoryUsedPercent float64 `json:"memory_used_percent"`
	MemoryTotalBytes  uint64  `json:"memory_total_bytes"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	body, status, err := apiRequest("GET", "/status", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", status, string(body))
	}

	var result statusResponse
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

	state := "stopped"
	if result.SupervisorRunning {
		state = "running"
	}
	fmt.Printf("Supervisor: %s\n", state)
	fmt.Printf("Uptime: %s\n", (time.Duration(result.UptimeSeconds) * time.Second).String())
	fmt.Printf("Targets: %d (%d supervised)\n", result.TargetCount, len(result.ActiveLoops))
	if result.Host != nil {
		fmt.Printf("Host CPU: %.1f%%  Memory: %.1f%% of %.2f GB\n",
			result.Host.CPUPercent,
			result.Host.MemoryUsedPercent,
			float64(result.Host.MemoryTotalBytes)/(1024*1024*1024))
	}

	if len(result.Targets) > 0 {
		fmt.Println()
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Name", "Status", "Enabled", "Last Restart")
		for _, t := range result.Targets {
			lastRestart := "never"
			if t.LastRestart != nil {
				lastRestart = t.LastRestart.Local().Format("2006-01-02 15:04:05")
			}
			table.Append(t.Name, t.Status, fmt.Sprintf("%v", t.Enabled), lastRestart)
		}
		table.Render()
	}

	if statusMetrics {
		fmt.Println()
		if err := printMetricsSummary(); err != nil {
			return err
		}
	}
	return nil
}

// printMetricsSummary scrapes the daemon's metrics endpoint and renders the
// supervision counters in a compact table.
func printMetricsSummary() error {
	url := strings.TrimRight(statusMetricsURL, "/") + "/metrics"
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to fetch metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("metrics endpoint returned status %d", resp.StatusCode)
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to parse metrics: %w", err)
	}

	names := make([]string, 0, len(families))
	for name := range families {
		if strings.HasPrefix(name, "procwatch_") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	if len(names) == 0 {
		fmt.Println("No supervision metrics exposed yet")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Metric", "Labels", "Value")

	for _, name := range names {
		for _, m := range families[name].GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%s", lp.GetName(), lp.GetValue()))
			}

			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			}

			table.Append(name, strings.Join(labels, ","), fmt.Sprintf("%g", value))
		}
	}

	table.Render()
	return nil
}
