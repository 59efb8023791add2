package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"batchtrack-backend/internal/db"
	"batchtrack-backend/internal/model"
)

var seed bool

// defaultCenters are inserted by migrate --seed into an empty database.
var defaultCenters = []struct{ code, name string }{
	{"NORTH", "North Collection Center"},
	{"SOUTH", "South Collection Center"},
	{"EAST", "East Collection Center"},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the schema of every partition",
	RunE: func(cmd *cobra.Command, args []string) error {
		gormDB, err := openDB()
		if err != nil {
			return err
		}
		if sqlDB, err := gormDB.DB(); err == nil {
			defer sqlDB.Close()
		}
		if !seed {
			return nil
		}

		centers := make([]model.CollectionCenter, 0, len(defaultCenters))
		for _, c := range defaultCenters {
			centers = append(centers, model.CollectionCenter{ID: uuid.NewString(), Code: c.code, Name: c.name, Active: true})
		}
		return db.Seed(gormDB, logger, centers)
	},
}
