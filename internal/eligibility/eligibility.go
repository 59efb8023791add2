// Package eligibility lists upstream output that the next stage has not
// consumed yet.
package eligibility

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"batchtrack-backend/internal/apperr"
	"batchtrack-backend/internal/model"
	"batchtrack-backend/internal/partition"
	"batchtrack-backend/internal/store"
)

// Stage names the stage a listing feeds.
type Stage string

const (
	// StageProcessing lists cans of submitted drafts not held by an active batch.
	StageProcessing Stage = "processing"
	// StagePackaging lists completed processing batches without packaging.
	StagePackaging Stage = "packaging"
	// StageLabeling lists completed packaging batches without labeling.
	StageLabeling Stage = "labeling"
)

// AllLines selects both product lines.
const AllLines = "all"

// Summary is one eligible upstream entity. Reference is the can code for
// cans and the processing batch number for batches. Quantity is the can
// quantity, the batch input quantity, or the finished quantity respectively.
type Summary struct {
	Stage       Stage             `json:"stage"`
	ProductLine model.ProductLine `json:"product_line"`
	ID          string            `json:"id"`
	Reference   string            `json:"reference"`
	Date        string            `json:"date"`
	DraftID     string            `json:"draft_id,omitempty"`
	CenterID    string            `json:"center_id,omitempty"`
	CanCount    int               `json:"can_count"`
	Quantity    float64           `json:"quantity"`
	OutputYield *float64          `json:"output_yield,omitempty"`
}

// Resolver runs eligibility queries. It never writes.
type Resolver struct {
	store store.Store
	lines partition.Registry
}

// NewResolver creates a resolver.
func NewResolver(st store.Store) *Resolver {
	return &Resolver{store: st, lines: partition.NewRegistry()}
}

// ParseStage validates raw as a stage name.
func ParseStage(raw string) (Stage, error) {
	switch s := Stage(raw); s {
	case StageProcessing, StagePackaging, StageLabeling:
		return s, nil
	}
	return "", apperr.Validation("unknown stage %q", raw)
}

// FindEligible lists what stage may consume on line, or on both lines when
// lineOrAll is empty or "all".
func (r *Resolver) FindEligible(ctx context.Context, stage Stage, lineOrAll string) ([]Summary, error) {
	lines := model.ProductLines
	if lineOrAll != "" && lineOrAll != AllLines {
		line, err := model.ParseProductLine(lineOrAll)
		if err != nil {
			return nil, apperr.Validation("%v", err)
		}
		lines = []model.ProductLine{line}
	}

	var query func(*gorm.DB, partition.Set) ([]Summary, error)
	switch stage {
	case StageProcessing:
		query = eligibleCans
	case StagePackaging:
		query = eligibleProcessing
	case StageLabeling:
		query = eligiblePackaging
	default:
		return nil, apperr.Validation("unknown stage %q", stage)
	}

	db := r.store.DB(ctx)
	out := []Summary{}
	for _, line := range lines {
		set := r.lines.Line(line)
		rows, err := query(db, set)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			rows[i].Stage, rows[i].ProductLine = stage, line
		}
		out = append(out, rows...)
	}
	return out, nil
}

func eligibleCans(db *gorm.DB, set partition.Set) ([]Summary, error) {
	held := set.Assignments.As(db, "a").
		Select("1").
		Joins(fmt.Sprintf("JOIN %s pb ON pb.id = a.batch_id", set.Processing.Table())).
		Where("a.can_id = c.id AND pb.status <> ?", model.ProcessingCancelled)

	var rows []Summary
	err := set.Cans.As(db, "c").
		Select("c.id AS id, c.code AS reference, d.collection_date AS date, c.draft_id AS draft_id, c.center_id AS center_id, 1 AS can_count, c.quantity AS quantity").
		Joins(fmt.Sprintf("JOIN %s d ON d.id = c.draft_id", set.Drafts.Table())).
		Where("d.status = ?", model.DraftStatusSubmitted).
		Where("NOT EXISTS (?)", held).
		Order("d.collection_date, c.code").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.FromDB(err, "list eligible cans")
	}
	return rows, nil
}

func eligibleProcessing(db *gorm.DB, set partition.Set) ([]Summary, error) {
	assignments, cans := set.Assignments.Table(), set.Cans.Table()
	canCount := fmt.Sprintf("(SELECT COUNT(*) FROM %s a WHERE a.batch_id = pb.id)", assignments)
	input := fmt.Sprintf("(SELECT COALESCE(SUM(c.quantity), 0) FROM %s a JOIN %s c ON c.id = a.can_id WHERE a.batch_id = pb.id)", assignments, cans)

	var rows []Summary
	err := set.Processing.As(db, "pb").
		Select(fmt.Sprintf("pb.id AS id, pb.batch_number AS reference, pb.scheduled_date AS date, pb.output_yield AS output_yield, %s AS can_count, %s AS quantity", canCount, input)).
		Joins(fmt.Sprintf("LEFT JOIN %s pk ON pk.processing_batch_id = pb.id", set.Packaging.Table())).
		Where("pb.status = ?", model.ProcessingCompleted).
		Where("pk.id IS NULL").
		Order("CAST(pb.batch_number AS INTEGER)").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.FromDB(err, "list eligible processing batches")
	}
	return rows, nil
}

func eligiblePackaging(db *gorm.DB, set partition.Set) ([]Summary, error) {
	assignments := set.Assignments.Table()
	canCount := fmt.Sprintf("(SELECT COUNT(*) FROM %s a WHERE a.batch_id = pk.processing_batch_id)", assignments)

	var rows []Summary
	err := set.Packaging.As(db, "pk").
		Select(fmt.Sprintf("pk.id AS id, COALESCE(pb.batch_number, '') AS reference, pk.started_date AS date, %s AS can_count, COALESCE(pk.finished_quantity, 0) AS quantity", canCount)).
		Joins(fmt.Sprintf("LEFT JOIN %s l ON l.packaging_batch_id = pk.id", set.Labeling.Table())).
		Joins(fmt.Sprintf("LEFT JOIN %s pb ON pb.id = pk.processing_batch_id", set.Processing.Table())).
		Where("pk.status = ?", model.StageCompleted).
		Where("l.id IS NULL").
		Order("pk.started_date, pk.created_at").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.FromDB(err, "list eligible packaging batches")
	}
	return rows, nil
}
