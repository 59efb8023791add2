// Package draft implements the field-collection draft lifecycle and the
// per-center completion records feeding into it.
package draft

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"batchtrack-backend/internal/apperr"
	"batchtrack-backend/internal/calendar"
	"batchtrack-backend/internal/identity"
	"batchtrack-backend/internal/model"
	"batchtrack-backend/internal/partition"
	"batchtrack-backend/internal/store"
)

// CenterLookup resolves active collection centers.
type CenterLookup interface {
	Get(ctx context.Context, id string) (model.CollectionCenter, error)
}

// Service runs the draft lifecycle.
type Service struct {
	store       store.Store
	authz       identity.Authorizer
	cal         calendar.Calendar
	centers     CenterLookup
	log         *zap.Logger
	drafts      partition.Handle
	completions partition.Handle
	lines       partition.Registry
}

// NewService creates a draft service.
func NewService(st store.Store, authz identity.Authorizer, cal calendar.Calendar, centers CenterLookup, log *zap.Logger) *Service {
	return &Service{
		store:       st,
		authz:       authz,
		cal:         cal,
		centers:     centers,
		log:         log.Named("draft"),
		drafts:      partition.ResolveShared(partition.KindDraft),
		completions: partition.ResolveShared(partition.KindCenterCompletion),
		lines:       partition.NewRegistry(),
	}
}

// Create opens a draft for the actor on in.CollectionDate, or today when the
// date is empty. One actor has at most one draft per date.
func (s *Service) Create(ctx context.Context, actor identity.Actor, in CreateInput) (Draft, error) {
	date := in.CollectionDate
	if date == "" {
		date = s.cal.Today()
	}
	date, err := calendar.ParseDate(date)
	if err != nil {
		return Draft{}, apperr.Validation("%v", err)
	}

	row := model.Draft{
		ID:             uuid.NewString(),
		CollectionDate: date,
		Status:         model.DraftStatusDraft,
		CreatedBy:      actor.ID,
	}
	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		var existing model.Draft
		err := s.drafts.Scope(tx).Where("created_by = ? AND collection_date = ?", actor.ID, date).Take(&existing).Error
		if err == nil {
			return apperr.Conflict([]string{existing.ID}, "a draft for %s already exists", date)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.FromDB(err, "check draft uniqueness")
		}
		return apperr.FromDB(s.drafts.Scope(tx).Create(&row).Error, "create draft")
	})
	if err != nil {
		return Draft{}, err
	}

	s.log.Info("draft created", zap.String("draft_id", row.ID), zap.String("date", date), zap.String("actor", actor.ID))
	return toDraft(row, nil), nil
}

// Get returns the draft with id and its completed centers.
func (s *Service) Get(ctx context.Context, actor identity.Actor, id string) (Draft, error) {
	db := s.store.DB(ctx)
	row, err := s.load(db, actor, id)
	if err != nil {
		return Draft{}, err
	}
	completions, err := s.loadCompletions(db, id)
	if err != nil {
		return Draft{}, err
	}
	return toDraft(row, completions), nil
}

// List returns the drafts visible to actor, newest date first.
func (s *Service) List(ctx context.Context, actor identity.Actor, filter ListFilter) ([]Draft, error) {
	q := s.drafts.Scope(s.store.DB(ctx))
	if !s.authz.IsAdmin(actor) {
		q = q.Where("created_by = ?", actor.ID)
	}
	if filter.Date != "" {
		date, err := calendar.ParseDate(filter.Date)
		if err != nil {
			return nil, apperr.Validation("%v", err)
		}
		q = q.Where("collection_date = ?", date)
	}
	if filter.Status != "" {
		status := model.DraftStatus(filter.Status)
		if status != model.DraftStatusDraft && status != model.DraftStatusSubmitted {
			return nil, apperr.Validation("unknown draft status %q", filter.Status)
		}
		q = q.Where("status = ?", status)
	}

	var rows []model.Draft
	if err := q.Order("collection_date DESC, created_at DESC").Find(&rows).Error; err != nil {
		return nil, apperr.FromDB(err, "list drafts")
	}
	if len(rows) == 0 {
		return []Draft{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	var completions []model.CenterCompletion
	if err := s.completions.Scope(s.store.DB(ctx)).Where("draft_id IN ?", ids).Order("center_id").Find(&completions).Error; err != nil {
		return nil, apperr.FromDB(err, "list center completions")
	}
	byDraft := make(map[string][]model.CenterCompletion, len(rows))
	for _, c := range completions {
		byDraft[c.DraftID] = append(byDraft[c.DraftID], c)
	}

	out := make([]Draft, 0, len(rows))
	for _, r := range rows {
		out = append(out, toDraft(r, byDraft[r.ID]))
	}
	return out, nil
}

// SaveDraft keeps the draft in draft status. It needs at least one completed
// center.
func (s *Service) SaveDraft(ctx context.Context, actor identity.Actor, id string) (Draft, error) {
	return s.transition(ctx, actor, id, model.DraftStatusDraft, true)
}

// Submit moves the draft to submitted. It needs at least one completed center.
func (s *Service) Submit(ctx context.Context, actor identity.Actor, id string) (Draft, error) {
	return s.transition(ctx, actor, id, model.DraftStatusSubmitted, true)
}

// Reopen moves the draft back to draft status. Completions are kept.
func (s *Service) Reopen(ctx context.Context, actor identity.Actor, id string) (Draft, error) {
	return s.transition(ctx, actor, id, model.DraftStatusDraft, false)
}

func (s *Service) transition(ctx context.Context, actor identity.Actor, id string, to model.DraftStatus, needCompletion bool) (Draft, error) {
	var (
		row         model.Draft
		completions []model.CenterCompletion
	)
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := store.LockByID(tx, s.drafts, id, &row); err != nil {
			return err
		}
		if err := identity.Require(s.authz, actor, row.CreatedBy, "draft "+id); err != nil {
			return err
		}

		var err error
		if completions, err = s.loadCompletions(tx, id); err != nil {
			return err
		}
		if needCompletion && len(completions) == 0 {
			return apperr.BusinessRule(nil, "draft %s has no completed collection center", id)
		}

		now := s.cal.Now()
		updates := map[string]any{"status": to, "updated_at": now}
		switch {
		case to == model.DraftStatusSubmitted && row.Status != model.DraftStatusSubmitted:
			updates["submitted_at"] = now
			row.SubmittedAt = &now
		case to == model.DraftStatusDraft:
			updates["submitted_at"] = nil
			row.SubmittedAt = nil
		}
		if err := s.drafts.Scope(tx).Where("id = ?", id).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, "update draft status")
		}
		row.Status = to
		row.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Draft{}, err
	}

	s.log.Info("draft status changed",
		zap.String("draft_id", id), zap.String("status", string(to)), zap.String("actor", actor.ID))
	return toDraft(row, completions), nil
}

// SubmitCenter marks centerID as finished for the draft. Repeating it
// refreshes the timestamp.
func (s *Service) SubmitCenter(ctx context.Context, actor identity.Actor, id, centerID string) (Completion, error) {
	if _, err := s.centers.Get(ctx, centerID); err != nil {
		return Completion{}, err
	}

	row := model.CenterCompletion{
		DraftID:     id,
		CenterID:    centerID,
		SubmittedBy: actor.ID,
		SubmittedAt: s.cal.Now(),
	}
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if _, err := s.load(tx, actor, id); err != nil {
			return err
		}
		err := s.completions.Scope(tx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "draft_id"}, {Name: "center_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"submitted_by", "submitted_at"}),
		}).Create(&row).Error
		return apperr.FromDB(err, "upsert center completion")
	})
	if err != nil {
		return Completion{}, err
	}

	s.log.Info("center submitted", zap.String("draft_id", id), zap.String("center_id", centerID), zap.String("actor", actor.ID))
	return toCompletion(row), nil
}

// ReopenCenter removes the completion of centerID. Reopening a center that was
// never submitted is a no-op.
func (s *Service) ReopenCenter(ctx context.Context, actor identity.Actor, id, centerID string) error {
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if _, err := s.load(tx, actor, id); err != nil {
			return err
		}
		err := s.completions.Scope(tx).Where("draft_id = ? AND center_id = ?", id, centerID).
			Delete(&model.CenterCompletion{}).Error
		return apperr.FromDB(err, "delete center completion")
	})
	if err != nil {
		return err
	}

	s.log.Info("center reopened", zap.String("draft_id", id), zap.String("center_id", centerID), zap.String("actor", actor.ID))
	return nil
}

// ListCompletions returns the completed centers of the draft.
func (s *Service) ListCompletions(ctx context.Context, actor identity.Actor, id string) ([]Completion, error) {
	db := s.store.DB(ctx)
	if _, err := s.load(db, actor, id); err != nil {
		return nil, err
	}
	rows, err := s.loadCompletions(db, id)
	if err != nil {
		return nil, err
	}
	out := make([]Completion, 0, len(rows))
	for _, r := range rows {
		out = append(out, toCompletion(r))
	}
	return out, nil
}

// Delete removes the draft with its cans and completions. Only admins may
// delete, and not while any of its cans is held by an active batch.
func (s *Service) Delete(ctx context.Context, actor identity.Actor, id string) error {
	if !s.authz.IsAdmin(actor) {
		return apperr.Forbidden("only an administrator may delete draft %s", id)
	}

	removed := make(map[model.ProductLine]int, len(s.lines))
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		var row model.Draft
		if err := store.LockByID(tx, s.drafts, id, &row); err != nil {
			return err
		}

		canIDs := make(map[model.ProductLine][]string, len(s.lines))
		var held []string
		for _, line := range model.ProductLines {
			set := s.lines.Line(line)
			var ids []string
			if err := set.Cans.Scope(tx).Where("draft_id = ?", id).Pluck("id", &ids).Error; err != nil {
				return apperr.FromDB(err, "list draft cans")
			}
			active, err := store.ActiveAssignments(tx, set, ids, "")
			if err != nil {
				return err
			}
			held = append(held, store.CanIDs(active)...)
			canIDs[line] = ids
		}
		if len(held) > 0 {
			return apperr.Conflict(held, "draft %s has cans in active processing batches", id)
		}

		for _, line := range model.ProductLines {
			set, ids := s.lines.Line(line), canIDs[line]
			if len(ids) == 0 {
				continue
			}
			if err := set.Assignments.Scope(tx).Where("can_id IN ?", ids).Delete(&model.ProcessingAssignment{}).Error; err != nil {
				return apperr.FromDB(err, "delete cancelled assignments")
			}
			if err := set.Cans.Scope(tx).Where("id IN ?", ids).Delete(&model.Can{}).Error; err != nil {
				return apperr.FromDB(err, "delete draft cans")
			}
			removed[line] = len(ids)
		}
		if err := s.completions.Scope(tx).Where("draft_id = ?", id).Delete(&model.CenterCompletion{}).Error; err != nil {
			return apperr.FromDB(err, "delete center completions")
		}
		return apperr.FromDB(s.drafts.Scope(tx).Where("id = ?", id).Delete(&model.Draft{}).Error, "delete draft")
	})
	if err != nil {
		return err
	}

	s.log.Info("draft deleted",
		zap.String("draft_id", id),
		zap.Int("stream_a_cans", removed[model.StreamA]),
		zap.Int("stream_b_cans", removed[model.StreamB]),
		zap.String("actor", actor.ID))
	return nil
}

func (s *Service) load(db *gorm.DB, actor identity.Actor, id string) (model.Draft, error) {
	var row model.Draft
	if err := store.FindByID(db, s.drafts, id, &row); err != nil {
		return model.Draft{}, err
	}
	if err := identity.Require(s.authz, actor, row.CreatedBy, "draft "+id); err != nil {
		return model.Draft{}, err
	}
	return row, nil
}

func (s *Service) loadCompletions(db *gorm.DB, id string) ([]model.CenterCompletion, error) {
	var rows []model.CenterCompletion
	if err := s.completions.Scope(db).Where("draft_id = ?", id).Order("center_id").Find(&rows).Error; err != nil {
		return nil, apperr.FromDB(err, "load center completions")
	}
	return rows, nil
}

// Editable loads the draft with id through db and checks that actor may change
// its cans: the actor must own it and it must still be in draft status.
func Editable(db *gorm.DB, authz identity.Authorizer, actor identity.Actor, id string) (model.Draft, error) {
	var row model.Draft
	if err := store.FindByID(db, partition.ResolveShared(partition.KindDraft), id, &row); err != nil {
		return model.Draft{}, err
	}
	if err := identity.Require(authz, actor, row.CreatedBy, "draft "+id); err != nil {
		return model.Draft{}, err
	}
	if row.Status != model.DraftStatusDraft {
		return model.Draft{}, apperr.BusinessRule([]string{id}, "draft %s is %s and can no longer be changed", id, row.Status)
	}
	return row, nil
}
