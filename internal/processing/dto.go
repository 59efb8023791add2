package processing

import (
	"time"

	"batchtrack-backend/internal/model"
)

// AssignedCan summarizes a can held by a batch.
type AssignedCan struct {
	ID       string  `json:"id"`
	Code     string  `json:"code"`
	DraftID  string  `json:"draft_id"`
	CenterID string  `json:"center_id"`
	Brix     float64 `json:"brix"`
	PH       float64 `json:"ph"`
	Quantity float64 `json:"quantity"`
}

// Batch is the external representation of a processing batch.
type Batch struct {
	ID              string                 `json:"id"`
	ProductLine     model.ProductLine      `json:"product_line"`
	BatchNumber     string                 `json:"batch_number"`
	ScheduledDate   string                 `json:"scheduled_date"`
	Status          model.ProcessingStatus `json:"status"`
	OutputYield     *float64               `json:"output_yield"`
	ConsumableUsage *float64               `json:"consumable_usage"`
	ConsumableCost  *float64               `json:"consumable_cost"`
	Notes           string                 `json:"notes"`
	CreatedBy       string                 `json:"created_by"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty"`
	CanCount        int                    `json:"can_count"`
	InputQuantity   float64                `json:"input_quantity"`
	Cans            []AssignedCan          `json:"cans,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func toBatch(line model.ProductLine, row model.ProcessingBatch, cans []AssignedCan) Batch {
	b := Batch{
		ID:              row.ID,
		ProductLine:     line,
		BatchNumber:     row.BatchNumber,
		ScheduledDate:   row.ScheduledDate,
		Status:          row.Status,
		OutputYield:     row.OutputYield,
		ConsumableUsage: row.ConsumableUsage,
		ConsumableCost:  row.ConsumableCost,
		Notes:           row.Notes,
		CreatedBy:       row.CreatedBy,
		CompletedAt:     row.CompletedAt,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
		Cans:            cans,
		CanCount:        len(cans),
	}
	for _, c := range cans {
		b.InputQuantity += c.Quantity
	}
	return b
}

// CreateInput is the payload of Create. An empty ScheduledDate means today.
type CreateInput struct {
	ProductLine   string `json:"product_line"`
	ScheduledDate string `json:"scheduled_date"`
	Notes         string `json:"notes"`
}

// MetricsInput is the payload of UpdateMetrics. Nil fields are left unchanged.
type MetricsInput struct {
	ProductLine     *string  `json:"product_line"`
	ScheduledDate   *string  `json:"scheduled_date"`
	OutputYield     *float64 `json:"output_yield"`
	ConsumableUsage *float64 `json:"consumable_usage"`
	ConsumableCost  *float64 `json:"consumable_cost"`
	Notes           *string  `json:"notes"`
}

// ListFilter narrows List. Empty fields do not filter.
type ListFilter struct {
	Status string `form:"status"`
	Date   string `form:"date"`
}
