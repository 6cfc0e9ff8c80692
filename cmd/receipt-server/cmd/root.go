package cmd

import (
	"github.com/spf13/cobra"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:     "receipt-server",
	Short:   "Receipt ingestion API server",
	Long:    `receipt-server exposes the upload and review-queue HTTP surface for the receipt ingestion pipeline.`,
	Version: version,
}

func Execute() error {
	return rootCmd.Execute()
}
