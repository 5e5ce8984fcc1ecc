package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/lupppig/deliverynotify/internal/config"
	"github.com/lupppig/deliverynotify/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config

	serverAddr string
	apiURL     string
	apiKey     string
	userID     string
	timeout    time.Duration
	quiet      bool
	jsonOut    bool
)

var rootCmd = &cobra.Command{
	Use:   "deliverynotify",
	Short: "CLI for the delivery notification pipeline",
	Long: `deliverynotify drives the delivery notification pipeline from a terminal.

Send delivery events, watch them arrive as foreground toasts, manage this
device's push subscription and notification settings, and inspect the
background agent.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		applyFlags(cmd)
		logging.Init("warn", "")
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.deliverynotify.yaml)")
	rootCmd.PersistentFlags().StringVarP(&serverAddr, "server", "s", config.DefaultServerAddr, "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", config.DefaultAPIURL, "HTTP API base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "admin API key")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "user id")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout (0 disables)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "JSON output")
}

// applyFlags lets explicitly set flags win over the loaded config.
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.Client.ServerAddr = serverAddr
	}
	if flags.Changed("api") {
		cfg.Client.APIURL = apiURL
	}
	if flags.Changed("api-key") {
		cfg.Client.APIKey = apiKey
	}
	if flags.Changed("user") {
		cfg.Client.UserID = userID
	}
}

func IsQuiet() bool {
	return quiet
}

func IsJSONOutput() bool {
	return jsonOut
}

// NewCommandContext applies the request timeout. gRPC credentials are
// attached by the client interceptors, HTTP ones by newAPIClient.
func NewCommandContext(parent context.Context) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(parent, timeout)
	}
	return context.WithCancel(parent)
}
