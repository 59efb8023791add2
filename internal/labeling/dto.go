package labeling

import (
	"time"

	"batchtrack-backend/internal/model"
)

// Batch is the external representation of a labeling batch.
type Batch struct {
	ID               string            `json:"id"`
	ProductLine      model.ProductLine `json:"product_line"`
	PackagingBatchID string            `json:"packaging_batch_id"`
	Status           model.StageStatus `json:"status"`
	LabeledDate      string            `json:"labeled_date"`
	LabeledQuantity  *float64          `json:"labeled_quantity"`
	LabelsUsed       *int              `json:"labels_used,omitempty"`
	SealsUsed        *int              `json:"seals_used,omitempty"`
	StickersUsed     *int              `json:"stickers_used,omitempty"`
	TagsUsed         *int              `json:"tags_used,omitempty"`
	MissingFields    []string          `json:"missing_fields"`
	CreatedBy        string            `json:"created_by"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func toBatch(line model.ProductLine, row model.LabelingBatch) Batch {
	missing := MissingFields(line, row)
	if missing == nil {
		missing = []string{}
	}
	return Batch{
		ID:               row.ID,
		ProductLine:      line,
		PackagingBatchID: row.PackagingBatchID,
		Status:           row.Status,
		LabeledDate:      row.LabeledDate,
		LabeledQuantity:  row.LabeledQuantity,
		LabelsUsed:       row.LabelsUsed,
		SealsUsed:        row.SealsUsed,
		StickersUsed:     row.StickersUsed,
		TagsUsed:         row.TagsUsed,
		MissingFields:    missing,
		CreatedBy:        row.CreatedBy,
		CompletedAt:      row.CompletedAt,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

// CreateInput is the payload of Create.
type CreateInput struct {
	ProductLine      string `json:"product_line"`
	PackagingBatchID string `json:"packaging_batch_id" binding:"required"`
}

// UpdateInput is the payload of Update. Nil fields are left unchanged.
type UpdateInput struct {
	ProductLine     *string  `json:"product_line"`
	Status          *string  `json:"status"`
	LabeledQuantity *float64 `json:"labeled_quantity"`
	LabelsUsed      *int     `json:"labels_used"`
	SealsUsed       *int     `json:"seals_used"`
	StickersUsed    *int     `json:"stickers_used"`
	TagsUsed        *int     `json:"tags_used"`
}

func (in UpdateInput) supplied() map[string]float64 {
	out := make(map[string]float64)
	if in.LabeledQuantity != nil {
		out["labeled_quantity"] = *in.LabeledQuantity
	}
	for name, v := range map[string]*int{
		"labels_used":   in.LabelsUsed,
		"seals_used":    in.SealsUsed,
		"stickers_used": in.StickersUsed,
		"tags_used":     in.TagsUsed,
	} {
		if v != nil {
			out[name] = float64(*v)
		}
	}
	return out
}

func (in UpdateInput) apply(row *model.LabelingBatch) {
	if in.LabeledQuantity != nil {
		row.LabeledQuantity = in.LabeledQuantity
	}
	if in.LabelsUsed != nil {
		row.LabelsUsed = in.LabelsUsed
	}
	if in.SealsUsed != nil {
		row.SealsUsed = in.SealsUsed
	}
	if in.StickersUsed != nil {
		row.StickersUsed = in.StickersUsed
	}
	if in.TagsUsed != nil {
		row.TagsUsed = in.TagsUsed
	}
}

// ListFilter narrows List. Empty fields do not filter.
type ListFilter struct {
	Status string `form:"status"`
	Date   string `form:"date"`
}
