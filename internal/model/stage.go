package model

import "time"

// StageStatus is shared by the packaging and labeling lifecycles.
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
	StageOnHold     StageStatus = "on_hold"
)

// Valid reports whether s is a known stage status.
func (s StageStatus) Valid() bool {
	switch s {
	case StagePending, StageInProgress, StageCompleted, StageOnHold:
		return true
	}
	return false
}

// PackagingBatch is created 1:1 from a completed processing batch. Columns for
// both product lines exist; which ones are required depends on the line.
type PackagingBatch struct {
	ID                string      `gorm:"primaryKey;size:36"`
	ProcessingBatchID string      `gorm:"uniqueIndex;size:36;not null"`
	Status            StageStatus `gorm:"size:16;not null;default:pending"`
	StartedDate       string      `gorm:"size:10;not null;index"`
	FinishedQuantity  *float64
	BottlesUsed       *int
	CapsUsed          *int
	PouchesUsed       *int
	CartonsUsed       *int
	CreatedBy         string `gorm:"size:64;not null"`
	CompletedAt       *time.Time
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

// LabelingBatch is created 1:1 from a completed packaging batch.
type LabelingBatch struct {
	ID               string      `gorm:"primaryKey;size:36"`
	PackagingBatchID string      `gorm:"uniqueIndex;size:36;not null"`
	Status           StageStatus `gorm:"size:16;not null;default:pending"`
	LabeledDate      string      `gorm:"size:10;not null;index"`
	LabeledQuantity  *float64
	LabelsUsed       *int
	SealsUsed        *int
	StickersUsed     *int
	TagsUsed         *int
	CreatedBy        string `gorm:"size:64;not null"`
	CompletedAt      *time.Time
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}
