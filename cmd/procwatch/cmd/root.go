package cmd

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serverURL    string
	outputFormat string
	cfgFile      string
	apiKey       string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "procwatch",
	Short: "Process supervision daemon and CLI",
	Long: `procwatch keeps configured executables alive: it polls the process
table on a per-target cadence, relaunches targets that have exited after a
configurable delay, and exposes a REST API for managing the watched set.`,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initClientConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/procwatch/config.yaml or $HOME/.procwatch/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "daemon API URL (default from config or http://localhost:8787)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
}

// initClientConfig reads in config file and ENV variables if set
func initClientConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".procwatch"))
		}
		viper.AddConfigPath("/etc/procwatch")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()
	viper.BindEnv("api_key", "PROCWATCH_API_KEY")
	viper.BindEnv("server_url", "PROCWATCH_SERVER")

	// Missing config file is fine for client commands
	_ = viper.ReadInConfig()

	if serverURL == "" {
		serverURL = viper.GetString("server_url")
	}
	if apiKey == "" {
		apiKey = viper.GetString("api_key")
	}

	if serverURL == "" {
		serverURL = "http://localhost:8787"
	}
}

// GetServerURL returns the configured daemon URL with trailing slashes removed
func GetServerURL() string {
	return strings.TrimRight(serverURL, "/")
}

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}

// CreateAuthenticatedRequest creates an HTTP request with the bearer token set
// when an API key is configured
func CreateAuthenticatedRequest(method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}

	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	return req, nil
}
