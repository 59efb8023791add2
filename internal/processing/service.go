// Package processing implements the processing batch lifecycle: grouping cans
// into bounded batches, tracking yield, and advancing or reverting status with
// the downstream cascade.
package processing

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"batchtrack-backend/internal/apperr"
	"batchtrack-backend/internal/calendar"
	"batchtrack-backend/internal/identity"
	"batchtrack-backend/internal/model"
	"batchtrack-backend/internal/partition"
	"batchtrack-backend/internal/store"
)

// Service runs the processing batch lifecycle for both product lines.
type Service struct {
	store store.Store
	authz identity.Authorizer
	cal   calendar.Calendar
	log   *zap.Logger
	lines partition.Registry
}

// NewService creates a processing service.
func NewService(st store.Store, authz identity.Authorizer, cal calendar.Calendar, log *zap.Logger) *Service {
	return &Service{
		store: st,
		authz: authz,
		cal:   cal,
		log:   log.Named("processing"),
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

func (s *Service) logTransition(msg string, set partition.Set, id string, actor identity.Actor, fields ...zap.Field) {
	fields = append([]zap.Field{
		zap.Stringer("partition", set.Processing),
		zap.String("batch_id", id),
		zap.String("actor", actor.ID),
	}, fields...)
	s.log.Info(msg, fields...)
}

// Create opens an empty in-progress batch with the next batch number of its
// partition.
func (s *Service) Create(ctx context.Context, actor identity.Actor, in CreateInput) (Batch, error) {
	set, err := s.set(in.ProductLine)
	if err != nil {
		return Batch{}, err
	}
	date := in.ScheduledDate
	if date == "" {
		date = s.cal.Today()
	}
	if date, err = calendar.ParseDate(date); err != nil {
		return Batch{}, apperr.Validation("%v", err)
	}

	row := model.ProcessingBatch{
		ID:            uuid.NewString(),
		ScheduledDate: date,
		Status:        model.ProcessingInProgress,
		Notes:         in.Notes,
		CreatedBy:     actor.ID,
	}
	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		number, err := store.NextBatchNumber(tx, set.Processing)
		if err != nil {
			return err
		}
		row.BatchNumber = number
		return apperr.FromDB(set.Processing.Scope(tx).Create(&row).Error, "create processing batch")
	})
	if err != nil {
		return Batch{}, err
	}

	s.logTransition("processing batch created", set, row.ID, actor, zap.String("batch_number", row.BatchNumber))
	return toBatch(set.Line, row, nil), nil
}

// Get returns the batch with its assigned cans.
func (s *Service) Get(ctx context.Context, rawLine, id string) (Batch, error) {
	set, err := s.set(rawLine)
	if err != nil {
		return Batch{}, err
	}
	db := s.store.DB(ctx)

	var row model.ProcessingBatch
	if err := store.FindByID(db, set.Processing, id, &row); err != nil {
		return Batch{}, err
	}
	cans, err := assignedCans(db, set, id)
	if err != nil {
		return Batch{}, err
	}
	return toBatch(set.Line, row, cans), nil
}

// List returns the batches of one line, newest number first. Each entry
// carries its can count and input quantity but not the cans themselves.
func (s *Service) List(ctx context.Context, rawLine string, filter ListFilter) ([]Batch, error) {
	set, err := s.set(rawLine)
	if err != nil {
		return nil, err
	}

	db := s.store.DB(ctx)
	q := set.Processing.Scope(db)
	if filter.Status != "" {
		status := model.ProcessingStatus(filter.Status)
		switch status {
		case model.ProcessingInProgress, model.ProcessingCompleted, model.ProcessingCancelled:
		default:
			return nil, apperr.Validation("unknown processing status %q", filter.Status)
		}
		q = q.Where("status = ?", status)
	}
	if filter.Date != "" {
		date, err := calendar.ParseDate(filter.Date)
		if err != nil {
			return nil, apperr.Validation("%v", err)
		}
		q = q.Where("scheduled_date = ?", date)
	}

	var rows []model.ProcessingBatch
	if err := q.Order("CAST(batch_number AS INTEGER) DESC").Find(&rows).Error; err != nil {
		return nil, apperr.FromDB(err, "list processing batches")
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	totals, err := assignmentTotals(db, set, ids)
	if err != nil {
		return nil, err
	}

	out := make([]Batch, 0, len(rows))
	for _, r := range rows {
		b := toBatch(set.Line, r, nil)
		b.CanCount = totals[r.ID].CanCount
		b.InputQuantity = totals[r.ID].InputQuantity
		out = append(out, b)
	}
	return out, nil
}

// SetCans replaces the batch's assignment with canIDs. The cans must exist in
// the batch's partition, come from submitted drafts and not be held by any
// other active batch. Any failure leaves the previous assignment in place.
func (s *Service) SetCans(ctx context.Context, actor identity.Actor, rawLine, id string, canIDs []string) (Batch, error) {
	set, err := s.set(rawLine)
	if err != nil {
		return Batch{}, err
	}
	ids := dedupe(canIDs)
	if len(ids) > model.MaxCansPerBatch {
		return Batch{}, apperr.Validation("a processing batch holds at most %d cans, got %d", model.MaxCansPerBatch, len(ids))
	}

	var (
		row  model.ProcessingBatch
		cans []AssignedCan
	)
	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := store.LockByID(tx, set.Processing, id, &row); err != nil {
			return err
		}
		if row.Status != model.ProcessingInProgress {
			return apperr.BusinessRule([]string{id}, "cans can only change while the batch is %s, batch %s is %s",
				model.ProcessingInProgress, row.BatchNumber, row.Status)
		}

		if err := set.Assignments.Scope(tx).Where("batch_id = ?", id).Delete(&model.ProcessingAssignment{}).Error; err != nil {
			return apperr.FromDB(err, "clear assignment")
		}
		if len(ids) == 0 {
			return nil
		}

		// can rows are locked before the conflict check so two batches
		// claiming the same can serialize here
		if _, err := store.LockIDs(tx, set.Cans, ids); err != nil {
			return err
		}
		if err := checkAssignable(tx, set, ids); err != nil {
			return err
		}
		active, err := store.ActiveAssignments(tx, set, ids, id)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			return apperr.Conflict(store.CanIDs(active), "cans are already assigned to another processing batch")
		}

		rows := make([]model.ProcessingAssignment, 0, len(ids))
		for _, canID := range ids {
			rows = append(rows, model.ProcessingAssignment{BatchID: id, CanID: canID})
		}
		if err := set.Assignments.Scope(tx).Create(&rows).Error; err != nil {
			return apperr.FromDB(err, "insert assignment")
		}

		cans, err = assignedCans(tx, set, id)
		return err
	})
	if err != nil {
		return Batch{}, err
	}

	s.logTransition("processing cans assigned", set, id, actor, zap.Int("cans", len(ids)))
	return toBatch(set.Line, row, cans), nil
}

// checkAssignable fails listing the ids that are missing from the partition
// or whose draft is not submitted.
func checkAssignable(tx *gorm.DB, set partition.Set, ids []string) error {
	type canDraft struct {
		ID          string
		DraftStatus model.DraftStatus
	}
	cans := set.Cans.Table()

	var found []canDraft
	err := set.Cans.Scope(tx).
		Select(fmt.Sprintf("%s.id AS id, d.status AS draft_status", cans)).
		Joins(fmt.Sprintf("JOIN %s d ON d.id = %s.draft_id", set.Drafts.Table(), cans)).
		Where(fmt.Sprintf("%s.id IN ?", cans), ids).
		Scan(&found).Error
	if err != nil {
		return apperr.FromDB(err, "load cans")
	}

	byID := make(map[string]model.DraftStatus, len(found))
	for _, f := range found {
		byID[f.ID] = f.DraftStatus
	}
	var missing, unsubmitted []string
	for _, id := range ids {
		status, ok := byID[id]
		switch {
		case !ok:
			missing = append(missing, id)
		case status != model.DraftStatusSubmitted:
			unsubmitted = append(unsubmitted, id)
		}
	}
	if len(missing) > 0 {
		e := apperr.NotFound("cans not found in %s", set.Line)
		e.Details = missing
		return e
	}
	if len(unsubmitted) > 0 {
		return apperr.BusinessRule(unsubmitted, "cans belong to drafts that are not submitted")
	}
	return nil
}

// Submit completes the batch. Submitting a completed batch is a no-op.
func (s *Service) Submit(ctx context.Context, actor identity.Actor, rawLine, id string) (Batch, error) {
	set, err := s.set(rawLine)
	if err != nil {
		return Batch{}, err
	}

	var (
		row     model.ProcessingBatch
		changed bool
	)
	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := store.LockByID(tx, set.Processing, id, &row); err != nil {
			return err
		}
		switch row.Status {
		case model.ProcessingCancelled:
			return apperr.BusinessRule([]string{id}, "batch %s is cancelled and cannot be submitted", row.BatchNumber)
		case model.ProcessingCompleted:
			return nil
		}

		now := s.cal.Now()
		if err := set.Processing.Scope(tx).Where("id = ?", id).Updates(map[string]any{
			"status":       model.ProcessingCompleted,
			"completed_at": now,
			"updated_at":   now,
		}).Error; err != nil {
			return apperr.FromDB(err, "submit processing batch")
		}
		row.Status, row.CompletedAt, row.UpdatedAt = model.ProcessingCompleted, &now, now
		changed = true
		return nil
	})
	if err != nil {
		return Batch{}, err
	}

	if changed {
		s.logTransition("processing batch submitted", set, id, actor)
	}
	return s.withCans(ctx, set, row)
}

// Reopen moves a completed batch back to in progress and removes the
// packaging batch made from it, together with that packaging batch's labeling
// batch.
func (s *Service) Reopen(ctx context.Context, actor identity.Actor, rawLine, id string) (Batch, error) {
	set, err := s.set(rawLine)
	if err != nil {
		return Batch{}, err
	}

	var (
		row     model.ProcessingBatch
		removed cascade
	)
	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := store.LockByID(tx, set.Processing, id, &row); err != nil {
			return err
		}
		switch row.Status {
		case model.ProcessingCancelled:
			return apperr.BusinessRule([]string{id}, "batch %s is cancelled and cannot be reopened", row.BatchNumber)
		case model.ProcessingInProgress:
			return apperr.BusinessRule([]string{id}, "only completed batches can be reopened, batch %s is %s", row.BatchNumber, row.Status)
		}

		var err error
		if removed, err = removeDownstream(tx, set, id); err != nil {
			return err
		}

		now := s.cal.Now()
		if err := set.Processing.Scope(tx).Where("id = ?", id).Updates(map[string]any{
			"status":       model.ProcessingInProgress,
			"completed_at": nil,
			"updated_at":   now,
		}).Error; err != nil {
			return apperr.FromDB(err, "reopen processing batch")
		}
		row.Status, row.CompletedAt, row.UpdatedAt = model.ProcessingInProgress, nil, now
		return nil
	})
	if err != nil {
		return Batch{}, err
	}

	s.logTransition("processing batch reopened", set, id, actor, removed.fields()...)
	return s.withCans(ctx, set, row)
}

// Cancel ends an in-progress batch for good. Its cans become free for other
// batches.
func (s *Service) Cancel(ctx context.Context, actor identity.Actor, rawLine, id string) (Batch, error) {
	set, err := s.set(rawLine)
	if err != nil {
		return Batch{}, err
	}

	var row model.ProcessingBatch
	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := store.LockByID(tx, set.Processing, id, &row); err != nil {
			return err
		}
		if row.Status != model.ProcessingInProgress {
			return apperr.BusinessRule([]string{id}, "only in-progress batches can be cancelled, batch %s is %s", row.BatchNumber, row.Status)
		}

		now := s.cal.Now()
		if err := set.Processing.Scope(tx).Where("id = ?", id).Updates(map[string]any{
			"status":     model.ProcessingCancelled,
			"updated_at": now,
		}).Error; err != nil {
			return apperr.FromDB(err, "cancel processing batch")
		}
		row.Status, row.UpdatedAt = model.ProcessingCancelled, now
		return nil
	})
	if err != nil {
		return Batch{}, err
	}

	s.logTransition("processing batch cancelled", set, id, actor)
	return s.withCans(ctx, set, row)
}

// UpdateMetrics changes yield, usage, cost, notes or the scheduled date. A
// batch never changes product line.
func (s *Service) UpdateMetrics(ctx context.Context, actor identity.Actor, rawLine, id string, in MetricsInput) (Batch, error) {
	set, err := s.set(rawLine)
	if err != nil {
		return Batch{}, err
	}
	if in.ProductLine != nil && *in.ProductLine != string(set.Line) {
		return Batch{}, apperr.BusinessRule([]string{id}, "processing batch %s cannot move from %s to %s", id, set.Line, *in.ProductLine)
	}

	updates := map[string]any{}
	if in.ScheduledDate != nil {
		date, err := calendar.ParseDate(*in.ScheduledDate)
		if err != nil {
			return Batch{}, apperr.Validation("%v", err)
		}
		updates["scheduled_date"] = date
	}
	for column, v := range map[string]*float64{
		"output_yield":     in.OutputYield,
		"consumable_usage": in.ConsumableUsage,
		"consumable_cost":  in.ConsumableCost,
	} {
		if v == nil {
			continue
		}
		if *v < 0 {
			return Batch{}, apperr.Validation("%s must not be negative, got %.2f", column, *v)
		}
		updates[column] = *v
	}
	if in.Notes != nil {
		updates["notes"] = *in.Notes
	}

	var row model.ProcessingBatch
	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := store.LockByID(tx, set.Processing, id, &row); err != nil {
			return err
		}
		if row.Status == model.ProcessingCancelled {
			return apperr.BusinessRule([]string{id}, "batch %s is cancelled", row.BatchNumber)
		}
		if len(updates) == 0 {
			return nil
		}
		updates["updated_at"] = s.cal.Now()
		if err := set.Processing.Scope(tx).Where("id = ?", id).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, "update processing metrics")
		}
		return store.FindByID(tx, set.Processing, id, &row)
	})
	if err != nil {
		return Batch{}, err
	}

	s.logTransition("processing metrics updated", set, id, actor)
	return s.withCans(ctx, set, row)
}

// Delete removes the batch, its assignment rows and everything made from it
// downstream. Only the creator or an admin may delete.
func (s *Service) Delete(ctx context.Context, actor identity.Actor, rawLine, id string) error {
	set, err := s.set(rawLine)
	if err != nil {
		return err
	}

	var removed cascade
	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		var row model.ProcessingBatch
		if err := store.LockByID(tx, set.Processing, id, &row); err != nil {
			return err
		}
		if err := identity.Require(s.authz, actor, row.CreatedBy, "processing batch "+row.BatchNumber); err != nil {
			return err
		}

		if err := set.Assignments.Scope(tx).Where("batch_id = ?", id).Delete(&model.ProcessingAssignment{}).Error; err != nil {
			return apperr.FromDB(err, "delete assignment")
		}
		var err error
		if removed, err = removeDownstream(tx, set, id); err != nil {
			return err
		}
		return apperr.FromDB(set.Processing.Scope(tx).Where("id = ?", id).Delete(&model.ProcessingBatch{}).Error, "delete processing batch")
	})
	if err != nil {
		return err
	}

	s.logTransition("processing batch deleted", set, id, actor, removed.fields()...)
	return nil
}

func (s *Service) withCans(ctx context.Context, set partition.Set, row model.ProcessingBatch) (Batch, error) {
	cans, err := assignedCans(s.store.DB(ctx), set, row.ID)
	if err != nil {
		return Batch{}, err
	}
	return toBatch(set.Line, row, cans), nil
}

// cascade records the downstream rows removed with a processing batch.
type cascade struct {
	PackagingID string
	LabelingID  string
}

func (c cascade) fields() []zap.Field {
	var fields []zap.Field
	if c.PackagingID != "" {
		fields = append(fields, zap.String("deleted_packaging_id", c.PackagingID))
	}
	if c.LabelingID != "" {
		fields = append(fields, zap.String("deleted_labeling_id", c.LabelingID))
	}
	return fields
}

// removeDownstream deletes the packaging batch made from processing batch id
// and the labeling batch made from that packaging batch.
func removeDownstream(tx *gorm.DB, set partition.Set, id string) (cascade, error) {
	var packaging []model.PackagingBatch
	if err := set.Packaging.Scope(tx).Where("processing_batch_id = ?", id).Find(&packaging).Error; err != nil {
		return cascade{}, apperr.FromDB(err, "load dependent packaging batch")
	}
	if len(packaging) == 0 {
		return cascade{}, nil
	}

	out := cascade{PackagingID: packaging[0].ID}
	var labeling []model.LabelingBatch
	if err := set.Labeling.Scope(tx).Where("packaging_batch_id = ?", out.PackagingID).Find(&labeling).Error; err != nil {
		return cascade{}, apperr.FromDB(err, "load dependent labeling batch")
	}
	if len(labeling) > 0 {
		out.LabelingID = labeling[0].ID
		if err := set.Labeling.Scope(tx).Where("id = ?", out.LabelingID).Delete(&model.LabelingBatch{}).Error; err != nil {
			return cascade{}, apperr.FromDB(err, "delete dependent labeling batch")
		}
	}
	if err := set.Packaging.Scope(tx).Where("id = ?", out.PackagingID).Delete(&model.PackagingBatch{}).Error; err != nil {
		return cascade{}, apperr.FromDB(err, "delete dependent packaging batch")
	}
	return out, nil
}

func assignedCans(db *gorm.DB, set partition.Set, batchID string) ([]AssignedCan, error) {
	cans, assignments := set.Cans.Table(), set.Assignments.Table()

	var out []AssignedCan
	err := set.Cans.Scope(db).
		Select(fmt.Sprintf("%[1]s.id, %[1]s.code, %[1]s.draft_id, %[1]s.center_id, %[1]s.brix, %[1]s.ph, %[1]s.quantity", cans)).
		Joins(fmt.Sprintf("JOIN %s a ON a.can_id = %s.id", assignments, cans)).
		Where("a.batch_id = ?", batchID).
		Order(cans + ".code").
		Scan(&out).Error
	if err != nil {
		return nil, apperr.FromDB(err, "load assigned cans")
	}
	return out, nil
}

type totals struct {
	BatchID       string
	CanCount      int
	InputQuantity float64
}

func assignmentTotals(db *gorm.DB, set partition.Set, batchIDs []string) (map[string]totals, error) {
	out := make(map[string]totals, len(batchIDs))
	if len(batchIDs) == 0 {
		return out, nil
	}
	cans, assignments := set.Cans.Table(), set.Assignments.Table()

	var rows []totals
	err := set.Assignments.Scope(db).
		Select(fmt.Sprintf("%[1]s.batch_id AS batch_id, COUNT(*) AS can_count, COALESCE(SUM(c.quantity), 0) AS input_quantity", assignments)).
		Joins(fmt.Sprintf("JOIN %s c ON c.id = %s.can_id", cans, assignments)).
		Where(fmt.Sprintf("%s.batch_id IN ?", assignments), batchIDs).
		Group(assignments + ".batch_id").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.FromDB(err, "load assignment totals")
	}
	for _, r := range rows {
		out[r.BatchID] = r
	}
	return out, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
