package packaging

import (
	"batchtrack-backend/internal/model"
	"batchtrack-backend/internal/stage"
)

// Fields lists what a packaging batch records. Finished quantity is common;
// material usage depends on the product line.
var Fields = stage.Fields{
	Common: []string{"finished_quantity"},
	Branch: map[model.ProductLine][]string{
		model.StreamA: {"bottles_used", "caps_used"},
		model.StreamB: {"pouches_used", "cartons_used"},
	},
}

func filled(row model.PackagingBatch) map[string]bool {
	return map[string]bool{
		"finished_quantity": row.FinishedQuantity != nil,
		"bottles_used":      row.BottlesUsed != nil,
		"caps_used":         row.CapsUsed != nil,
		"pouches_used":      row.PouchesUsed != nil,
		"cartons_used":      row.CartonsUsed != nil,
	}
}

// MissingFields returns the required fields of line still unset on row.
func MissingFields(line model.ProductLine, row model.PackagingBatch) []string {
	return Fields.Missing(line, filled(row))
}

// IsComplete reports whether row carries every field line requires.
func IsComplete(line model.ProductLine, row model.PackagingBatch) bool {
	return len(MissingFields(line, row)) == 0
}
