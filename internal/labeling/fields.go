package labeling

import (
	"batchtrack-backend/internal/model"
	"batchtrack-backend/internal/stage"
)

// Fields lists what a labeling batch records. Labeled quantity is common;
// accessory usage depends on the product line.
var Fields = stage.Fields{
	Common: []string{"labeled_quantity"},
	Branch: map[model.ProductLine][]string{
		model.StreamA: {"labels_used", "seals_used"},
		model.StreamB: {"stickers_used", "tags_used"},
	},
}

func filled(row model.LabelingBatch) map[string]bool {
	return map[string]bool{
		"labeled_quantity": row.LabeledQuantity != nil,
		"labels_used":      row.LabelsUsed != nil,
		"seals_used":       row.SealsUsed != nil,
		"stickers_used":    row.StickersUsed != nil,
		"tags_used":        row.TagsUsed != nil,
	}
}

// MissingFields returns the required fields of line still unset on row.
func MissingFields(line model.ProductLine, row model.LabelingBatch) []string {
	return Fields.Missing(line, filled(row))
}

// IsComplete reports whether row carries every field line requires.
func IsComplete(line model.ProductLine, row model.LabelingBatch) bool {
	return len(MissingFields(line, row)) == 0
}
