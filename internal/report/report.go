// Package report builds the read-only daily report across all four stages and
// both product lines.
package report

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"batchtrack-backend/internal/apperr"
	"batchtrack-backend/internal/calendar"
	"batchtrack-backend/internal/model"
	"batchtrack-backend/internal/partition"
	"batchtrack-backend/internal/store"
)

// Aggregator computes daily reports.
type Aggregator struct {
	store store.Store
	log   *zap.Logger
	lines partition.Registry
}

// NewAggregator creates an aggregator.
func NewAggregator(st store.Store, log *zap.Logger) *Aggregator {
	return &Aggregator{store: st, log: log.Named("report"), lines: partition.NewRegistry()}
}

// DailyReport returns the per-line and combined totals for date. The lines
// are queried concurrently.
func (a *Aggregator) DailyReport(ctx context.Context, date string) (Report, error) {
	date, err := calendar.ParseDate(date)
	if err != nil {
		return Report{}, apperr.Validation("%v", err)
	}

	results := make([]Totals, len(model.ProductLines))
	g, gctx := errgroup.WithContext(ctx)
	for i, line := range model.ProductLines {
		set := a.lines.Line(line)
		g.Go(func() error {
			t, err := lineTotals(a.store.DB(gctx), set, date)
			if err != nil {
				return fmt.Errorf("%s totals: %w", line, err)
			}
			results[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	out := Report{Date: date, Lines: make(map[model.ProductLine]Totals, len(results))}
	for i, line := range model.ProductLines {
		out.Lines[line] = results[i]
	}
	out.Combined = Combine(results...)

	a.log.Debug("daily report built", zap.String("date", date),
		zap.Int("drafts", out.Combined.Collection.DraftCount),
		zap.Int("processing_batches", out.Combined.Processing.BatchCount))
	return out, nil
}

func lineTotals(db *gorm.DB, set partition.Set, date string) (Totals, error) {
	var (
		t   Totals
		err error
	)
	if t.Collection, err = collectionTotals(db, set, date); err != nil {
		return Totals{}, err
	}
	if t.Processing, err = processingTotals(db, set, date); err != nil {
		return Totals{}, err
	}
	if t.Packaging, err = packagingTotals(db, set, date); err != nil {
		return Totals{}, err
	}
	if t.Labeling, err = labelingTotals(db, set, date); err != nil {
		return Totals{}, err
	}
	return t, nil
}

func collectionTotals(db *gorm.DB, set partition.Set, date string) (Collection, error) {
	var rows []struct {
		DraftID  string
		CanCount int
		Quantity float64
	}
	err := set.Cans.As(db, "c").
		Select("c.draft_id AS draft_id, COUNT(*) AS can_count, COALESCE(SUM(c.quantity), 0) AS quantity").
		Joins(fmt.Sprintf("JOIN %s d ON d.id = c.draft_id", set.Drafts.Table())).
		Where("d.collection_date = ? AND d.status = ?", date, model.DraftStatusSubmitted).
		Group("c.draft_id").
		Order("c.draft_id").
		Scan(&rows).Error
	if err != nil {
		return Collection{}, apperr.FromDB(err, "collection totals")
	}

	out := Collection{DraftIDs: make([]string, 0, len(rows))}
	for _, r := range rows {
		out.DraftIDs = append(out.DraftIDs, r.DraftID)
		out.CanCount += r.CanCount
		out.Quantity += r.Quantity
	}
	out.DraftCount = len(out.DraftIDs)
	return out, nil
}

func processingTotals(db *gorm.DB, set partition.Set, date string) (Processing, error) {
	var out Processing
	err := set.Processing.Scope(db).
		Select(`COUNT(*) AS batch_count,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS completed_count,
			COALESCE(SUM(output_yield), 0) AS output_yield,
			COALESCE(SUM(consumable_usage), 0) AS consumable_usage,
			COALESCE(SUM(consumable_cost), 0) AS consumable_cost`, model.ProcessingCompleted).
		Where("scheduled_date = ? AND status <> ?", date, model.ProcessingCancelled).
		Scan(&out).Error
	if err != nil {
		return Processing{}, apperr.FromDB(err, "processing totals")
	}

	var input struct {
		CanCount      int
		InputQuantity float64
	}
	err = set.Assignments.As(db, "a").
		Select("COUNT(*) AS can_count, COALESCE(SUM(c.quantity), 0) AS input_quantity").
		Joins(fmt.Sprintf("JOIN %s pb ON pb.id = a.batch_id", set.Processing.Table())).
		Joins(fmt.Sprintf("JOIN %s c ON c.id = a.can_id", set.Cans.Table())).
		Where("pb.scheduled_date = ? AND pb.status <> ?", date, model.ProcessingCancelled).
		Scan(&input).Error
	if err != nil {
		return Processing{}, apperr.FromDB(err, "processing input totals")
	}
	out.CanCount, out.InputQuantity = input.CanCount, input.InputQuantity
	return out, nil
}

func packagingTotals(db *gorm.DB, set partition.Set, date string) (Packaging, error) {
	var out Packaging
	err := set.Packaging.Scope(db).
		Select(`COUNT(*) AS batch_count,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS completed_count,
			COALESCE(SUM(finished_quantity), 0) AS finished_quantity,
			COALESCE(SUM(bottles_used), 0) AS bottles_used,
			COALESCE(SUM(caps_used), 0) AS caps_used,
			COALESCE(SUM(pouches_used), 0) AS pouches_used,
			COALESCE(SUM(cartons_used), 0) AS cartons_used`, model.StageCompleted).
		Where("started_date = ?", date).
		Scan(&out).Error
	if err != nil {
		return Packaging{}, apperr.FromDB(err, "packaging totals")
	}
	return out, nil
}

func labelingTotals(db *gorm.DB, set partition.Set, date string) (Labeling, error) {
	var out Labeling
	err := set.Labeling.Scope(db).
		Select(`COUNT(*) AS batch_count,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS completed_count,
			COALESCE(SUM(labeled_quantity), 0) AS labeled_quantity,
			COALESCE(SUM(labels_used), 0) AS labels_used,
			COALESCE(SUM(seals_used), 0) AS seals_used,
			COALESCE(SUM(stickers_used), 0) AS stickers_used,
			COALESCE(SUM(tags_used), 0) AS tags_used`, model.StageCompleted).
		Where("labeled_date = ?", date).
		Scan(&out).Error
	if err != nil {
		return Labeling{}, apperr.FromDB(err, "labeling totals")
	}
	return out, nil
}
