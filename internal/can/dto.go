package can

import (
	"time"

	"batchtrack-backend/internal/model"
)

// Can is the external representation of a can.
type Can struct {
	ID          string            `json:"id"`
	Code        string            `json:"code"`
	DraftID     string            `json:"draft_id"`
	CenterID    string            `json:"center_id"`
	ProductLine model.ProductLine `json:"product_line"`
	Brix        float64           `json:"brix"`
	PH          float64           `json:"ph"`
	Quantity    float64           `json:"quantity"`
	CreatedBy   string            `json:"created_by"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func toCan(row model.Can) Can {
	return Can{
		ID:          row.ID,
		Code:        row.Code,
		DraftID:     row.DraftID,
		CenterID:    row.CenterID,
		ProductLine: row.ProductLine,
		Brix:        row.Brix,
		PH:          row.PH,
		Quantity:    row.Quantity,
		CreatedBy:   row.CreatedBy,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

// CreateInput is the payload of Create. Code may be the full code or only its
// number.
type CreateInput struct {
	DraftID     string  `json:"draft_id" binding:"required"`
	CenterID    string  `json:"center_id" binding:"required"`
	ProductLine string  `json:"product_line"`
	Code        string  `json:"code" binding:"required"`
	Brix        float64 `json:"brix"`
	PH          float64 `json:"ph"`
	Quantity    float64 `json:"quantity"`
}

// UpdateInput is the payload of Update. Nil fields are left unchanged.
type UpdateInput struct {
	ProductLine *string  `json:"product_line"`
	CenterID    *string  `json:"center_id"`
	Code        *string  `json:"code"`
	Brix        *float64 `json:"brix"`
	PH          *float64 `json:"ph"`
	Quantity    *float64 `json:"quantity"`
}

// ListFilter narrows ListByDraft. Empty fields do not filter.
type ListFilter struct {
	ProductLine string `form:"product_line"`
	CenterID    string `form:"center_id"`
}
