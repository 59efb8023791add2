package packaging

import (
	"time"

	"batchtrack-backend/internal/model"
)

// Batch is the external representation of a packaging batch.
type Batch struct {
	ID                string            `json:"id"`
	ProductLine       model.ProductLine `json:"product_line"`
	ProcessingBatchID string            `json:"processing_batch_id"`
	Status            model.StageStatus `json:"status"`
	StartedDate       string            `json:"started_date"`
	FinishedQuantity  *float64          `json:"finished_quantity"`
	BottlesUsed       *int              `json:"bottles_used,omitempty"`
	CapsUsed          *int              `json:"caps_used,omitempty"`
	PouchesUsed       *int              `json:"pouches_used,omitempty"`
	CartonsUsed       *int              `json:"cartons_used,omitempty"`
	MissingFields     []string          `json:"missing_fields"`
	CreatedBy         string            `json:"created_by"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func toBatch(line model.ProductLine, row model.PackagingBatch) Batch {
	missing := MissingFields(line, row)
	if missing == nil {
		missing = []string{}
	}
	return Batch{
		ID:                row.ID,
		ProductLine:       line,
		ProcessingBatchID: row.ProcessingBatchID,
		Status:            row.Status,
		StartedDate:       row.StartedDate,
		FinishedQuantity:  row.FinishedQuantity,
		BottlesUsed:       row.BottlesUsed,
		CapsUsed:          row.CapsUsed,
		PouchesUsed:       row.PouchesUsed,
		CartonsUsed:       row.CartonsUsed,
		MissingFields:     missing,
		CreatedBy:         row.CreatedBy,
		CompletedAt:       row.CompletedAt,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

// CreateInput is the payload of Create. An empty StartedDate means today.
type CreateInput struct {
	ProductLine       string `json:"product_line"`
	ProcessingBatchID string `json:"processing_batch_id" binding:"required"`
	StartedDate       string `json:"started_date"`
}

// UpdateInput is the payload of Update. Nil fields are left unchanged.
type UpdateInput struct {
	ProductLine      *string  `json:"product_line"`
	Status           *string  `json:"status"`
	StartedDate      *string  `json:"started_date"`
	FinishedQuantity *float64 `json:"finished_quantity"`
	BottlesUsed      *int     `json:"bottles_used"`
	CapsUsed         *int     `json:"caps_used"`
	PouchesUsed      *int     `json:"pouches_used"`
	CartonsUsed      *int     `json:"cartons_used"`
}

// supplied returns the names of the usage fields present in the payload and
// their values for sign checks.
func (in UpdateInput) supplied() map[string]float64 {
	out := make(map[string]float64)
	if in.FinishedQuantity != nil {
		out["finished_quantity"] = *in.FinishedQuantity
	}
	for name, v := range map[string]*int{
		"bottles_used": in.BottlesUsed,
		"caps_used":    in.CapsUsed,
		"pouches_used": in.PouchesUsed,
		"cartons_used": in.CartonsUsed,
	} {
		if v != nil {
			out[name] = float64(*v)
		}
	}
	return out
}

// apply merges the payload onto row.
func (in UpdateInput) apply(row *model.PackagingBatch) {
	if in.FinishedQuantity != nil {
		row.FinishedQuantity = in.FinishedQuantity
	}
	if in.BottlesUsed != nil {
		row.BottlesUsed = in.BottlesUsed
	}
	if in.CapsUsed != nil {
		row.CapsUsed = in.CapsUsed
	}
	if in.PouchesUsed != nil {
		row.PouchesUsed = in.PouchesUsed
	}
	if in.CartonsUsed != nil {
		row.CartonsUsed = in.CartonsUsed
	}
}

// ListFilter narrows List. Empty fields do not filter.
type ListFilter struct {
	Status string `form:"status"`
	Date   string `form:"date"`
}
