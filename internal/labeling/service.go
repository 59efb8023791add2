// Package labeling implements the labeling batch lifecycle, the last stage.
// A labeling batch is made 1:1 from a completed packaging batch.
package labeling

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"batchtrack-backend/internal/apperr"
	"batchtrack-backend/internal/calendar"
	"batchtrack-backend/internal/identity"
	"batchtrack-backend/internal/model"
	"batchtrack-backend/internal/partition"
	"batchtrack-backend/internal/stage"
	"batchtrack-backend/internal/store"
)

// Service runs the labeling lifecycle for both product lines.
type Service struct {
	store store.Store
	authz identity.Authorizer
	cal   calendar.Calendar
	log   *zap.Logger
	lines partition.Registry
}

// NewService creates a labeling service.
func NewService(st store.Store, authz identity.Authorizer, cal calendar.Calendar, log *zap.Logger) *Service {
	return &Service{
		store: st,
		authz: authz,
		cal:   cal,
		log:   log.Named("labeling"),
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

// Create opens the labeling batch of a completed packaging batch, dated
// today. Retrying returns the batch created first; created reports whether
// this call inserted it.
func (s *Service) Create(ctx context.Context, actor identity.Actor, in CreateInput) (b Batch, created bool, err error) {
	set, err := s.set(in.ProductLine)
	if err != nil {
		return Batch{}, false, err
	}

	candidate := model.LabelingBatch{
		ID:               uuid.NewString(),
		PackagingBatchID: in.PackagingBatchID,
		Status:           model.StagePending,
		LabeledDate:      s.cal.Today(),
		CreatedBy:        actor.ID,
	}
	var row model.LabelingBatch
	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		var source model.PackagingBatch
		if err := store.LockByID(tx, set.Packaging, in.PackagingBatchID, &source); err != nil {
			return err
		}
		if source.Status != model.StageCompleted {
			return apperr.Conflict([]string{source.ID}, "packaging batch %s is %s and not eligible for labeling", source.ID, source.Status)
		}

		err := set.Labeling.Scope(tx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "packaging_batch_id"}},
			DoNothing: true,
		}).Create(&candidate).Error
		if err != nil {
			return apperr.FromDB(err, "create labeling batch")
		}
		err = set.Labeling.Scope(tx).Where("packaging_batch_id = ?", in.PackagingBatchID).Take(&row).Error
		return apperr.FromDB(err, "load labeling batch")
	})
	if err != nil {
		return Batch{}, false, err
	}

	created = row.ID == candidate.ID
	if created {
		s.log.Info("labeling batch created",
			zap.Stringer("partition", set.Labeling), zap.String("batch_id", row.ID),
			zap.String("packaging_batch_id", row.PackagingBatchID), zap.String("actor", actor.ID))
	}
	return toBatch(set.Line, row), created, nil
}

// Get returns the labeling batch with id.
func (s *Service) Get(ctx context.Context, rawLine, id string) (Batch, error) {
	set, err := s.set(rawLine)
	if err != nil {
		return Batch{}, err
	}
	var row model.LabelingBatch
	if err := store.FindByID(s.store.DB(ctx), set.Labeling, id, &row); err != nil {
		return Batch{}, err
	}
	return toBatch(set.Line, row), nil
}

// List returns the labeling batches of one line, newest first.
func (s *Service) List(ctx context.Context, rawLine string, filter ListFilter) ([]Batch, error) {
	set, err := s.set(rawLine)
	if err != nil {
		return nil, err
	}
	q := set.Labeling.Scope(s.store.DB(ctx))
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
		q = q.Where("labeled_date = ?", date)
	}

	var rows []model.LabelingBatch
	if err := q.Order("labeled_date DESC, created_at DESC").Find(&rows).Error; err != nil {
		return nil, apperr.FromDB(err, "list labeling batches")
	}
	out := make([]Batch, 0, len(rows))
	for _, r := range rows {
		out = append(out, toBatch(set.Line, r))
	}
	return out, nil
}

// Update merges in onto the batch, completing it unless the caller names
// another status.
func (s *Service) Update(ctx context.Context, actor identity.Actor, rawLine, id string, in UpdateInput) (Batch, error) {
	set, err := s.set(rawLine)
	if err != nil {
		return Batch{}, err
	}
	if in.ProductLine != nil && *in.ProductLine != string(set.Line) {
		return Batch{}, apperr.BusinessRule([]string{id}, "labeling batch %s cannot move from %s to %s", id, set.Line, *in.ProductLine)
	}
	explicit, err := stage.ParseStatus(in.Status)
	if err != nil {
		return Batch{}, err
	}
	supplied := in.supplied()
	if err := stage.NonNegative(supplied); err != nil {
		return Batch{}, err
	}
	names := make([]string, 0, len(supplied))
	for name := range supplied {
		names = append(names, name)
	}
	if err := Fields.CheckBranch(set.Line, names); err != nil {
		return Batch{}, err
	}

	var row model.LabelingBatch
	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := store.LockByID(tx, set.Labeling, id, &row); err != nil {
			return err
		}
		if row.Status == model.StageCompleted {
			return apperr.BusinessRule([]string{id}, "labeling batch %s is completed, reopen it first", id)
		}

		in.apply(&row)
		status, err := stage.ResolveStatus(explicit, MissingFields(set.Line, row))
		if err != nil {
			return err
		}
		now := s.cal.Now()
		row.Status, row.UpdatedAt, row.CompletedAt = status, now, nil
		if status == model.StageCompleted {
			row.CompletedAt = &now
		}

		err = set.Labeling.Scope(tx).Where("id = ?", id).Updates(map[string]any{
			"status":           row.Status,
			"labeled_quantity": row.LabeledQuantity,
			"labels_used":      row.LabelsUsed,
			"seals_used":       row.SealsUsed,
			"stickers_used":    row.StickersUsed,
			"tags_used":        row.TagsUsed,
			"completed_at":     row.CompletedAt,
			"updated_at":       now,
		}).Error
		return apperr.FromDB(err, "update labeling batch")
	})
	if err != nil {
		return Batch{}, err
	}

	s.log.Info("labeling batch updated",
		zap.Stringer("partition", set.Labeling), zap.String("batch_id", id),
		zap.String("status", string(row.Status)), zap.String("actor", actor.ID))
	return toBatch(set.Line, row), nil
}

// Reopen moves a completed batch back to in progress.
func (s *Service) Reopen(ctx context.Context, actor identity.Actor, rawLine, id string) (Batch, error) {
	set, err := s.set(rawLine)
	if err != nil {
		return Batch{}, err
	}

	var row model.LabelingBatch
	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := store.LockByID(tx, set.Labeling, id, &row); err != nil {
			return err
		}
		if row.Status != model.StageCompleted {
			return apperr.BusinessRule([]string{id}, "only completed labeling batches can be reopened, batch %s is %s", id, row.Status)
		}
		now := s.cal.Now()
		row.Status, row.CompletedAt, row.UpdatedAt = model.StageInProgress, nil, now
		err := set.Labeling.Scope(tx).Where("id = ?", id).Updates(map[string]any{
			"status":       row.Status,
			"completed_at": nil,
			"updated_at":   now,
		}).Error
		return apperr.FromDB(err, "reopen labeling batch")
	})
	if err != nil {
		return Batch{}, err
	}

	s.log.Info("labeling batch reopened",
		zap.Stringer("partition", set.Labeling), zap.String("batch_id", id), zap.String("actor", actor.ID))
	return toBatch(set.Line, row), nil
}

// Delete removes the labeling batch. Only the creator or an admin may delete.
func (s *Service) Delete(ctx context.Context, actor identity.Actor, rawLine, id string) error {
	set, err := s.set(rawLine)
	if err != nil {
		return err
	}

	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		var row model.LabelingBatch
		if err := store.LockByID(tx, set.Labeling, id, &row); err != nil {
			return err
		}
		if err := identity.Require(s.authz, actor, row.CreatedBy, "labeling batch "+id); err != nil {
			return err
		}
		return apperr.FromDB(set.Labeling.Scope(tx).Where("id = ?", id).Delete(&model.LabelingBatch{}).Error, "delete labeling batch")
	})
	if err != nil {
		return err
	}

	s.log.Info("labeling batch deleted",
		zap.Stringer("partition", set.Labeling), zap.String("batch_id", id), zap.String("actor", actor.ID))
	return nil
}
