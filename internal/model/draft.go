package model

import "time"

// DraftStatus is the lifecycle state of a field-collection draft.
type DraftStatus string

const (
	DraftStatusDraft     DraftStatus = "draft"
	DraftStatusSubmitted DraftStatus = "submitted"
)

// Draft is one day's field-collection staging document. Drafts are shared
// by both product lines.
type Draft struct {
	ID             string      `gorm:"primaryKey;size:36"`
	CollectionDate string      `gorm:"size:10;not null;uniqueIndex:idx_drafts_creator_date,priority:2"`
	Status         DraftStatus `gorm:"size:16;not null;default:draft;index"`
	CreatedBy      string      `gorm:"size:64;not null;uniqueIndex:idx_drafts_creator_date,priority:1"`
	SubmittedAt    *time.Time
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// CenterCompletion marks one collection center's contribution to a draft as
// finished.
type CenterCompletion struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	DraftID     string    `gorm:"size:36;not null;uniqueIndex:idx_center_completions_draft_center,priority:1"`
	CenterID    string    `gorm:"size:36;not null;uniqueIndex:idx_center_completions_draft_center,priority:2"`
	SubmittedBy string    `gorm:"size:64;not null"`
	SubmittedAt time.Time `gorm:"not null"`
}

// CollectionCenter is reference data for the places cans are collected at.
type CollectionCenter struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Code      string    `gorm:"uniqueIndex;size:32;not null"`
	Name      string    `gorm:"size:128;not null"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
