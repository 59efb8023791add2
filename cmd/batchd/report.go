package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"batchtrack-backend/internal/calendar"
)

var reportDate string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the daily report as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		gormDB, err := openDB()
		if err != nil {
			return err
		}
		if sqlDB, err := gormDB.DB(); err == nil {
			defer sqlDB.Close()
		}

		date := reportDate
		if date == "" {
			date = calendar.New(cfg.App.Location).Today()
		}
		rep, err := newServices(gormDB).Reports.DailyReport(cmd.Context(), date)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	},
}
