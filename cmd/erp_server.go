package cmd

import (
	"github.com/ferumlab/ferum-hub/internal/api"
	"github.com/ferumlab/ferum-hub/internal/config"
	"github.com/ferumlab/ferum-hub/internal/telemetry"
	"github.com/spf13/cobra"
)

var erpServerCmd = &cobra.Command{
	Use:   "erp-server",
	Short: "Start the ERP RPC server",
	Run: func(cmd *cobra.Command, args []string) {
		conf := config.ReadConfig()

		shutdownTelemetry := telemetry.NewProvider(conf.OTEL_EXPORTER_OTLP_ENDPOINT)
		defer shutdownTelemetry()

		s := api.New(conf)
		s.Start()
	},
}

// Register the "erp-server" command
func init() {
	rootCmd.AddCommand(erpServerCmd)
}
