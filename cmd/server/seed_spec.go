package main

import (
	"github.com/jrsteele09/datum-mcp-bridge/internal/config"
	bridgeerrors "github.com/jrsteele09/datum-mcp-bridge/internal/errors"
	"github.com/jrsteele09/datum-mcp-bridge/internal/logger"
	"github.com/jrsteele09/datum-mcp-bridge/internal/metrics"
	"github.com/spf13/cobra"
)

var seedSpecCmd = &cobra.Command{
	Use:   "seed-spec",
	Short: "Fetch the OpenAPI spec once with DATUM_OPENAPI_TOKEN and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c := config.New()
		logger.Init(c.GetEnv())
		if c.GetOpenAPIToken() == "" {
			return &bridgeerrors.ConfigError{Field: "DATUM_OPENAPI_TOKEN", Reason: "is required to seed the spec"}
		}
		return newRefresher(c, metrics.NewMetricsCollector()).Refresh(cmd.Context(), "")
	},
}
