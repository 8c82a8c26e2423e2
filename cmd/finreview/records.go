package main

import (
	"github.com/spf13/cobra"

	"finreview/internal/repository"
	"finreview/internal/service"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List recently saved records",
	RunE:  runRecords,
}

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Print the analytics report over saved records",
	RunE:  runAnalytics,
}

func init() {
	recordsCmd.Flags().Int("limit", 20, "number of records to list")
	rootCmd.AddCommand(recordsCmd, analyticsCmd)
}

func recordService(cmd *cobra.Command) (service.RecordService, func(), error) {
	db, err := repository.Open(cmd.Context(), &cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	return service.NewRecordService(repository.NewRecordRepo(db)), func() { _ = db.Close() }, nil
}

func runRecords(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	svc, closeDB, err := recordService(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	records, err := svc.ListRecent(cmd.Context(), limit)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), records)
}

func runAnalytics(cmd *cobra.Command, args []string) error {
	svc, closeDB, err := recordService(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	report, err := svc.Analytics(cmd.Context())
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), report)
}
