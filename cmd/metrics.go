package cmd

import (
	"github.com/spf13/cobra"
)

// metricsCmd represents the metrics command
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Probe the backend and print client metrics",
	Long: `Fetch a CSRF token and, when signed in, the Google Fit link status, then
print the client counters in Prometheus text format.

Useful to check that the backend is reachable and that the session is still
accepted.`,
	Args: cobra.NoArgs,
	RunE: runMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)
}

func runMetrics(cmd *cobra.Command, args []string) error {
	application, err := newApplication(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx := cmd.Context()
	services := application.Services()

	services.CSRF.Token(ctx)
	if services.Store.Read(ctx) != nil {
		services.Auth.GoogleStatus(ctx)
	}

	return services.Metrics.WriteText(cmd.OutOrStdout())
}
