// Package packaging implements the packaging batch lifecycle. A packaging
// batch is made 1:1 from a completed processing batch.
package packaging

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"batchtrack-backend/internal/apperr"
	"batchtrack-backend/internal/calendar"
	"batchtrack-backend/internal/identity"
	"batchtrack-backend/internal/model"
	"batchtrack-backend/internal/partition"
	"batchtrack-backend/internal/stage"
	"batchtrack-backend/internal/store"
)

// Service runs the packaging lifecycle for both product lines.
type Service struct {
	store store.Store
	authz identity.Authorizer
	cal   calendar.Calendar
	log   *zap.Logger
	lines partition.Registry
}

// NewService creates a packaging service.
func NewService(st store.Store, authz identity.Authorizer, cal calendar.Calendar, log *zap.Logger) *Service {
	return &Service{
		store: st,
		authz: authz,
		cal:   cal,
		log:   log.Named("packaging"),
		lines: partition.NewRegistry(),
	}
}

func (s *Service) set(rawLine string) (partition.Set, error) {
	line, err := model.ParseProductLine(rawLine)
	if err != nil {
		return partition.Set{}, apperr.Validation("%v", err)
	}
	return s.lines.Line(line), nil
}

// Create opens a packaging batch for a completed processing batch that has
// none yet.
func (s *Service) Create(ctx context.Context, actor identity.Actor, in CreateInput) (Batch, error) {
	set, err := s.set(in.ProductLine)
	if err != nil {
		return Batch{}, err
	}
	date := in.StartedDate
	if date == "" {
		date = s.cal.Today()
	}
	if date, err = calendar.ParseDate(date); err != nil {
		return Batch{}, apperr.Validation("%v", err)
	}

	row := model.PackagingBatch{
		ID:                uuid.NewString(),
		ProcessingBatchID: in.ProcessingBatchID,
		Status:            model.StagePending,
		StartedDate:       date,
		CreatedBy:         actor.ID,
	}
	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		var source model.ProcessingBatch
		if err := store.LockByID(tx, set.Processing, in.ProcessingBatchID, &source); err != nil {
			return err
		}
		if source.Status != model.ProcessingCompleted {
			return apperr.Conflict([]string{source.ID}, "processing batch %s is %s and not eligible for packaging", source.BatchNumber, source.Status)
		}

		var existing model.PackagingBatch
		err := set.Packaging.Scope(tx).Where("processing_batch_id = ?", source.ID).Take(&existing).Error
		if err == nil {
			return apperr.Conflict([]string{existing.ID}, "processing batch %s already has a packaging batch", source.BatchNumber)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.FromDB(err, "check packaging batch")
		}
		return apperr.FromDB(set.Packaging.Scope(tx).Create(&row).Error, "create packaging batch")
	})
	if err != nil {
		return Batch{}, err
	}

	s.log.Info("packaging batch created",
		zap.Stringer("partition", set.Packaging), zap.String("batch_id", row.ID),
		zap.String("processing_batch_id", row.ProcessingBatchID), zap.String("actor", actor.ID))
	return toBatch(set.Line, row), nil
}

// Get returns the packaging batch with id.
func (s *Service) Get(ctx context.Context, rawLine, id string) (Batch, error) {
	set, err := s.set(rawLine)
	if err != nil {
		return Batch{}, err
	}
	var row model.PackagingBatch
	if err := store.FindByID(s.store.DB(ctx), set.Packaging, id, &row); err != nil {
		return Batch{}, err
	}
	return toBatch(set.Line, row), nil
}

// List returns the packaging batches of one line, newest start date first.
func (s *Service) List(ctx context.Context, rawLine string, filter ListFilter) ([]Batch, error) {
	set, err := s.set(rawLine)
	if err != nil {
		return nil, err
	}
	q := set.Packaging.Scope(s.store.DB(ctx))
	if filter.Status != "" {
		status := model.StageStatus(filter.Status)
		if !status.Valid() {
			return nil, apperr.Validation("unknown status %q", filter.Status)
		}
		q = q.Where("status = ?", status)
	}
	if filter.Date != "" {
		date, err := calendar.ParseDate(filter.Date)
		if err != nil {
			return nil, apperr.Validation("%v", err)
		}
		q = q.Where("started_date = ?", date)
	}

	var rows []model.PackagingBatch
	if err := q.Order("started_date DESC, created_at DESC").Find(&rows).Error; err != nil {
		return nil, apperr.FromDB(err, "list packaging batches")
	}
	out := make([]Batch, 0, len(rows))
	for _, r := range rows {
		out = append(out, toBatch(set.Line, r))
	}
	return out, nil
}

// Update merges in onto the batch. Without an explicit status the batch
// completes, which fails naming the missing fields when the line's required
// set is not filled.
func (s *Service) Update(ctx context.Context, actor identity.Actor, rawLine, id string, in UpdateInput) (Batch, error) {
	set, err := s.set(rawLine)
	if err != nil {
		return Batch{}, err
	}
	if in.ProductLine != nil && *in.ProductLine != string(set.Line) {
		return Batch{}, apperr.BusinessRule([]string{id}, "packaging batch %s cannot move from %s to %s", id, set.Line, *in.ProductLine)
	}
	explicit, err := stage.ParseStatus(in.Status)
	if err != nil {
		return Batch{}, err
	}
	supplied := in.supplied()
	if err := stage.NonNegative(supplied); err != nil {
		return Batch{}, err
	}
	if err := Fields.CheckBranch(set.Line, keys(supplied)); err != nil {
		return Batch{}, err
	}
	var started string
	if in.StartedDate != nil {
		if started, err = calendar.ParseDate(*in.StartedDate); err != nil {
			return Batch{}, apperr.Validation("%v", err)
		}
	}

	var row model.PackagingBatch
	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := store.LockByID(tx, set.Packaging, id, &row); err != nil {
			return err
		}
		if row.Status == model.StageCompleted {
			return apperr.BusinessRule([]string{id}, "packaging batch %s is completed, reopen it first", id)
		}

		in.apply(&row)
		if started != "" {
			row.StartedDate = started
		}
		status, err := stage.ResolveStatus(explicit, MissingFields(set.Line, row))
		if err != nil {
			return err
		}
		now := s.cal.Now()
		row.Status, row.UpdatedAt = status, now
		row.CompletedAt = nil
		if status == model.StageCompleted {
			row.CompletedAt = &now
		}

		err = set.Packaging.Scope(tx).Where("id = ?", id).Updates(map[string]any{
			"status":            row.Status,
			"started_date":      row.StartedDate,
			"finished_quantity": row.FinishedQuantity,
			"bottles_used":      row.BottlesUsed,
			"caps_used":         row.CapsUsed,
			"pouches_used":      row.PouchesUsed,
			"cartons_used":      row.CartonsUsed,
			"completed_at":      row.CompletedAt,
			"updated_at":        now,
		}).Error
		return apperr.FromDB(err, "update packaging batch")
	})
	if err != nil {
		return Batch{}, err
	}

	s.log.Info("packaging batch updated",
		zap.Stringer("partition", set.Packaging), zap.String("batch_id", id),
		zap.String("status", string(row.Status)), zap.String("actor", actor.ID))
	return toBatch(set.Line, row), nil
}

// Reopen moves a completed batch back to in progress. It is refused while a
// labeling batch exists for it.
func (s *Service) Reopen(ctx context.Context, actor identity.Actor, rawLine, id string) (Batch, error) {
	set, err := s.set(rawLine)
	if err != nil {
		return Batch{}, err
	}

	var row model.PackagingBatch
	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := store.LockByID(tx, set.Packaging, id, &row); err != nil {
			return err
		}
		if row.Status != model.StageCompleted {
			return apperr.BusinessRule([]string{id}, "only completed packaging batches can be reopened, batch %s is %s", id, row.Status)
		}
		if err := refuseWithLabeling(tx, set, id); err != nil {
			return err
		}

		now := s.cal.Now()
		row.Status, row.CompletedAt, row.UpdatedAt = model.StageInProgress, nil, now
		err := set.Packaging.Scope(tx).Where("id = ?", id).Updates(map[string]any{
			"status":       row.Status,
			"completed_at": nil,
			"updated_at":   now,
		}).Error
		return apperr.FromDB(err, "reopen packaging batch")
	})
	if err != nil {
		return Batch{}, err
	}

	s.log.Info("packaging batch reopened",
		zap.Stringer("partition", set.Packaging), zap.String("batch_id", id), zap.String("actor", actor.ID))
	return toBatch(set.Line, row), nil
}

// Delete removes a packaging batch that has no labeling batch. Only the
// creator or an admin may delete.
func (s *Service) Delete(ctx context.Context, actor identity.Actor, rawLine, id string) error {
	set, err := s.set(rawLine)
	if err != nil {
		return err
	}

	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		var row model.PackagingBatch
		if err := store.LockByID(tx, set.Packaging, id, &row); err != nil {
			return err
		}
		if err := identity.Require(s.authz, actor, row.CreatedBy, "packaging batch "+id); err != nil {
			return err
		}
		if err := refuseWithLabeling(tx, set, id); err != nil {
			return err
		}
		return apperr.FromDB(set.Packaging.Scope(tx).Where("id = ?", id).Delete(&model.PackagingBatch{}).Error, "delete packaging batch")
	})
	if err != nil {
		return err
	}

	s.log.Info("packaging batch deleted",
		zap.Stringer("partition", set.Packaging), zap.String("batch_id", id), zap.String("actor", actor.ID))
	return nil
}

func refuseWithLabeling(tx *gorm.DB, set partition.Set, id string) error {
	var labeling []string
	if err := set.Labeling.Scope(tx).Where("packaging_batch_id = ?", id).Limit(1).Pluck("id", &labeling).Error; err != nil {
		return apperr.FromDB(err, "check labeling batch")
	}
	if len(labeling) > 0 {
		return apperr.Conflict(labeling, "packaging batch %s has a labeling batch", id)
	}
	return nil
}

func keys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
