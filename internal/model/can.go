package model

import "time"

// Can is an individually identified unit of raw material. The same struct is
// stored in one table per product line.
type Can struct {
	ID          string      `gorm:"primaryKey;size:36"`
	Code        string      `gorm:"uniqueIndex;size:16;not null"`
	DraftID     string      `gorm:"size:36;not null;index"`
	CenterID    string      `gorm:"size:36;not null;index"`
	ProductLine ProductLine `gorm:"size:16;not null"`
	Brix        float64     `gorm:"not null"`
	PH          float64     `gorm:"column:ph;not null"`
	Quantity    float64     `gorm:"not null"`
	CreatedBy   string      `gorm:"size:64;not null"`
	CreatedAt   time.Time   `gorm:"not null"`
	UpdatedAt   time.Time   `gorm:"not null"`
}
