package draft

import (
	"time"

	"batchtrack-backend/internal/model"
)

// Draft is the external representation of a draft.
type Draft struct {
	ID               string            `json:"id"`
	CollectionDate   string            `json:"collection_date"`
	Status           model.DraftStatus `json:"status"`
	CreatedBy        string            `json:"created_by"`
	SubmittedAt      *time.Time        `json:"submitted_at,omitempty"`
	CompletedCenters []string          `json:"completed_centers"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Completion is the external representation of a center completion.
type Completion struct {
	DraftID     string    `json:"draft_id"`
	CenterID    string    `json:"center_id"`
	SubmittedBy string    `json:"submitted_by"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func toDraft(row model.Draft, completions []model.CenterCompletion) Draft {
	centers := make([]string, 0, len(completions))
	for _, c := range completions {
		centers = append(centers, c.CenterID)
	}
	return Draft{
		ID:               row.ID,
		CollectionDate:   row.CollectionDate,
		Status:           row.Status,
		CreatedBy:        row.CreatedBy,
		SubmittedAt:      row.SubmittedAt,
		CompletedCenters: centers,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

func toCompletion(row model.CenterCompletion) Completion {
	return Completion{
		DraftID:     row.DraftID,
		CenterID:    row.CenterID,
		SubmittedBy: row.SubmittedBy,
		SubmittedAt: row.SubmittedAt,
	}
}

// CreateInput is the payload of Create. An empty CollectionDate means today.
type CreateInput struct {
	CollectionDate string `json:"collection_date"`
}

// ListFilter narrows List. Empty fields do not filter.
type ListFilter struct {
	Date   string `form:"date"`
	Status string `form:"status"`
}
