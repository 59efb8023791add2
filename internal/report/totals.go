package report

import (
	"sort"

	"batchtrack-backend/internal/model"
)

// Collection totals cover cans of submitted drafts collected that day.
type Collection struct {
	DraftCount int      `json:"draft_count"`
	CanCount   int      `json:"can_count"`
	Quantity   float64  `json:"quantity"`
	DraftIDs   []string `json:"draft_ids"`
}

// Processing totals cover non-cancelled batches scheduled that day.
type Processing struct {
	BatchCount      int     `json:"batch_count"`
	CompletedCount  int     `json:"completed_count"`
	CanCount        int     `json:"can_count"`
	InputQuantity   float64 `json:"input_quantity"`
	OutputYield     float64 `json:"output_yield"`
	ConsumableUsage float64 `json:"consumable_usage"`
	ConsumableCost  float64 `json:"consumable_cost"`
}

// Packaging totals cover batches started that day.
type Packaging struct {
	BatchCount       int     `json:"batch_count"`
	CompletedCount   int     `json:"completed_count"`
	FinishedQuantity float64 `json:"finished_quantity"`
	BottlesUsed      int     `json:"bottles_used"`
	CapsUsed         int     `json:"caps_used"`
	PouchesUsed      int     `json:"pouches_used"`
	CartonsUsed      int     `json:"cartons_used"`
}

// Labeling totals cover batches created that day.
type Labeling struct {
	BatchCount      int     `json:"batch_count"`
	CompletedCount  int     `json:"completed_count"`
	LabeledQuantity float64 `json:"labeled_quantity"`
	LabelsUsed      int     `json:"labels_used"`
	SealsUsed       int     `json:"seals_used"`
	StickersUsed    int     `json:"stickers_used"`
	TagsUsed        int     `json:"tags_used"`
}

// Totals groups the four stages.
type Totals struct {
	Collection Collection `json:"collection"`
	Processing Processing `json:"processing"`
	Packaging  Packaging  `json:"packaging"`
	Labeling   Labeling   `json:"labeling"`
}

// Report is the daily cross-stage report.
type Report struct {
	Date     string                       `json:"date"`
	Lines    map[model.ProductLine]Totals `json:"lines"`
	Combined Totals                       `json:"combined"`
}

// Combine sums totals field by field. Draft IDs are merged as a set, and the
// draft count follows the merged set.
func Combine(totals ...Totals) Totals {
	var out Totals
	seen := make(map[string]struct{})
	for _, t := range totals {
		c := t.Collection
		out.Collection.CanCount += c.CanCount
		out.Collection.Quantity += c.Quantity
		for _, id := range c.DraftIDs {
			seen[id] = struct{}{}
		}

		p := t.Processing
		out.Processing.BatchCount += p.BatchCount
		out.Processing.CompletedCount += p.CompletedCount
		out.Processing.CanCount += p.CanCount
		out.Processing.InputQuantity += p.InputQuantity
		out.Processing.OutputYield += p.OutputYield
		out.Processing.ConsumableUsage += p.ConsumableUsage
		out.Processing.ConsumableCost += p.ConsumableCost

		k := t.Packaging
		out.Packaging.BatchCount += k.BatchCount
		out.Packaging.CompletedCount += k.CompletedCount
		out.Packaging.FinishedQuantity += k.FinishedQuantity
		out.Packaging.BottlesUsed += k.BottlesUsed
		out.Packaging.CapsUsed += k.CapsUsed
		out.Packaging.PouchesUsed += k.PouchesUsed
		out.Packaging.CartonsUsed += k.CartonsUsed

		l := t.Labeling
		out.Labeling.BatchCount += l.BatchCount
		out.Labeling.CompletedCount += l.CompletedCount
		out.Labeling.LabeledQuantity += l.LabeledQuantity
		out.Labeling.LabelsUsed += l.LabelsUsed
		out.Labeling.SealsUsed += l.SealsUsed
		out.Labeling.StickersUsed += l.StickersUsed
		out.Labeling.TagsUsed += l.TagsUsed
	}

	out.Collection.DraftIDs = make([]string, 0, len(seen))
	for id := range seen {
		out.Collection.DraftIDs = append(out.Collection.DraftIDs, id)
	}
	sort.Strings(out.Collection.DraftIDs)
	out.Collection.DraftCount = len(out.Collection.DraftIDs)
	return out
}
