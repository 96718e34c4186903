package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/ledger-upload-reformatter/internal/metrics"
	"github.com/ginjaninja78/ledger-upload-reformatter/internal/web"
)

// serveAddr overrides http.addr from the config.
var serveAddr string

// serveCmd represents the 'serve' command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the upload page and conversion API",
	Long: `Serve starts an HTTP server with an upload page where an export can be
converted from the browser, a JSON preview and conversion API, /health
and Prometheus /metrics. It shuts down gracefully on SIGINT or SIGTERM.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			appConfig.HTTP.Addr = serveAddr
		}

		server := web.NewServer(appConfig, logger, metrics.New(nil))
		return server.ListenAndServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: http.addr from config)")
}
