package model

import "time"

// ProcessingStatus is the lifecycle state of a processing batch.
type ProcessingStatus string

const (
	ProcessingInProgress ProcessingStatus = "in_progress"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingCancelled  ProcessingStatus = "cancelled"
)

// MaxCansPerBatch caps how many cans one processing batch may hold.
const MaxCansPerBatch = 15

// ProcessingBatch groups cans of one product line into a cooking run.
type ProcessingBatch struct {
	ID              string           `gorm:"primaryKey;size:36"`
	BatchNumber     string           `gorm:"uniqueIndex;size:8;not null"`
	ScheduledDate   string           `gorm:"size:10;not null;index"`
	Status          ProcessingStatus `gorm:"size:16;not null;default:in_progress"`
	OutputYield     *float64
	ConsumableUsage *float64
	ConsumableCost  *float64
	Notes           string `gorm:"size:512"`
	CreatedBy       string `gorm:"size:64;not null"`
	CompletedAt     *time.Time
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// ProcessingAssignment links a can to a processing batch. A can may appear in
// several rows over time, but only one of them may belong to a batch that is
// not cancelled.
type ProcessingAssignment struct {
	BatchID   string    `gorm:"primaryKey;size:36"`
	CanID     string    `gorm:"primaryKey;size:36;index"`
	CreatedAt time.Time `gorm:"not null"`
}

// BatchSequence serializes batch numbering of one partition. LastValue is the
// last number issued.
type BatchSequence struct {
	PartitionKey string `gorm:"primaryKey;size:64"`
	LastValue    int    `gorm:"not null"`
}
