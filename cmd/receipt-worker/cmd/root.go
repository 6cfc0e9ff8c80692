package cmd

import (
	"github.com/spf13/cobra"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:     "receipt-worker",
	Short:   "Receipt ingestion pipeline worker",
	Long:    `receipt-worker drains the durable work queue and runs each receipt through the ingestion pipeline.`,
	Version: version,
}

func Execute() error {
	return rootCmd.Execute()
}
