// Package can is the unit-of-input registry: cans collected into a draft at a
// collection center, stored in the partition of their product line.
package can

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"batchtrack-backend/internal/apperr"
	"batchtrack-backend/internal/draft"
	"batchtrack-backend/internal/identity"
	"batchtrack-backend/internal/model"
	"batchtrack-backend/internal/parse"
	"batchtrack-backend/internal/partition"
	"batchtrack-backend/internal/store"
)

// Registry creates, updates and deletes cans.
type Registry struct {
	store   store.Store
	authz   identity.Authorizer
	centers draft.CenterLookup
	log     *zap.Logger
	drafts  partition.Handle
	lines   partition.Registry
}

// NewRegistry creates a can registry.
func NewRegistry(st store.Store, authz identity.Authorizer, centers draft.CenterLookup, log *zap.Logger) *Registry {
	return &Registry{
		store:   st,
		authz:   authz,
		centers: centers,
		log:     log.Named("can"),
		drafts:  partition.ResolveShared(partition.KindDraft),
		lines:   partition.NewRegistry(),
	}
}

func parseLine(raw string) (model.ProductLine, error) {
	line, err := model.ParseProductLine(raw)
	if err != nil {
		return "", apperr.Validation("%v", err)
	}
	return line, nil
}

func parseCode(raw string, line model.ProductLine) (string, error) {
	code, err := parse.ParseCanCode(raw, partition.CanPrefix(line))
	if err != nil {
		return "", apperr.Validation("%v", err)
	}
	return code.String(), nil
}

// Create registers a can in the partition of in.ProductLine.
func (r *Registry) Create(ctx context.Context, actor identity.Actor, in CreateInput) (Can, error) {
	line, err := parseLine(in.ProductLine)
	if err != nil {
		return Can{}, err
	}
	code, err := parseCode(in.Code, line)
	if err != nil {
		return Can{}, err
	}
	if err := validateMeasurements(in.Brix, in.PH, in.Quantity); err != nil {
		return Can{}, err
	}
	if _, err := r.centers.Get(ctx, in.CenterID); err != nil {
		return Can{}, err
	}

	set := r.lines.Line(line)
	row := model.Can{
		ID:          uuid.NewString(),
		Code:        code,
		DraftID:     in.DraftID,
		CenterID:    in.CenterID,
		ProductLine: line,
		Brix:        in.Brix,
		PH:          in.PH,
		Quantity:    in.Quantity,
		CreatedBy:   actor.ID,
	}
	err = r.store.Transaction(ctx, func(tx *gorm.DB) error {
		if _, err := draft.Editable(tx, r.authz, actor, in.DraftID); err != nil {
			return err
		}
		if err := r.ensureCodeFree(tx, set, code, ""); err != nil {
			return err
		}
		return apperr.FromDB(set.Cans.Scope(tx).Create(&row).Error, "create can")
	})
	if err != nil {
		return Can{}, err
	}

	r.log.Info("can created",
		zap.Stringer("partition", set.Cans), zap.String("can_id", row.ID),
		zap.String("code", code), zap.String("actor", actor.ID))
	return toCan(row), nil
}

// Get returns the can with id on line.
func (r *Registry) Get(ctx context.Context, actor identity.Actor, rawLine, id string) (Can, error) {
	line, err := parseLine(rawLine)
	if err != nil {
		return Can{}, err
	}
	db := r.store.DB(ctx)

	var row model.Can
	if err := store.FindByID(db, r.lines.Line(line).Cans, id, &row); err != nil {
		return Can{}, err
	}
	if err := r.requireDraftAccess(db, actor, row.DraftID); err != nil {
		return Can{}, err
	}
	return toCan(row), nil
}

// ListByDraft returns the cans of a draft across both lines, ordered by code.
func (r *Registry) ListByDraft(ctx context.Context, actor identity.Actor, draftID string, filter ListFilter) ([]Can, error) {
	lines := model.ProductLines
	if filter.ProductLine != "" {
		line, err := parseLine(filter.ProductLine)
		if err != nil {
			return nil, err
		}
		lines = []model.ProductLine{line}
	}

	db := r.store.DB(ctx)
	if err := r.requireDraftAccess(db, actor, draftID); err != nil {
		return nil, err
	}

	out := []Can{}
	for _, line := range lines {
		q := r.lines.Line(line).Cans.Scope(db).Where("draft_id = ?", draftID)
		if filter.CenterID != "" {
			q = q.Where("center_id = ?", filter.CenterID)
		}
		var rows []model.Can
		if err := q.Order("code").Find(&rows).Error; err != nil {
			return nil, apperr.FromDB(err, "list cans")
		}
		for _, row := range rows {
			out = append(out, toCan(row))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Update changes a can while its draft is still open and no active
// processing batch holds it. A can never moves to another product line.
func (r *Registry) Update(ctx context.Context, actor identity.Actor, rawLine, id string, in UpdateInput) (Can, error) {
	line, err := parseLine(rawLine)
	if err != nil {
		return Can{}, err
	}
	if in.ProductLine != nil && *in.ProductLine != string(line) {
		return Can{}, apperr.BusinessRule([]string{id}, "can %s cannot move from %s to %s", id, line, *in.ProductLine)
	}
	var code string
	if in.Code != nil {
		if code, err = parseCode(*in.Code, line); err != nil {
			return Can{}, err
		}
	}
	if in.CenterID != nil {
		if _, err := r.centers.Get(ctx, *in.CenterID); err != nil {
			return Can{}, err
		}
	}

	set := r.lines.Line(line)
	var row model.Can
	err = r.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := store.LockByID(tx, set.Cans, id, &row); err != nil {
			return err
		}
		if _, err := draft.Editable(tx, r.authz, actor, row.DraftID); err != nil {
			return err
		}
		if err := refuseWhileAssigned(tx, set, row); err != nil {
			return err
		}

		if code != "" && code != row.Code {
			if err := r.ensureCodeFree(tx, set, code, row.ID); err != nil {
				return err
			}
			row.Code = code
		}
		if in.CenterID != nil {
			row.CenterID = *in.CenterID
		}
		if in.Brix != nil {
			row.Brix = *in.Brix
		}
		if in.PH != nil {
			row.PH = *in.PH
		}
		if in.Quantity != nil {
			row.Quantity = *in.Quantity
		}
		if err := validateMeasurements(row.Brix, row.PH, row.Quantity); err != nil {
			return err
		}

		err := set.Cans.Scope(tx).Where("id = ?", row.ID).Updates(map[string]any{
			"code":       row.Code,
			"center_id":  row.CenterID,
			"brix":       row.Brix,
			"ph":         row.PH,
			"quantity":   row.Quantity,
			"updated_at": time.Now(),
		}).Error
		if err != nil {
			return apperr.FromDB(err, "update can")
		}
		return store.FindByID(tx, set.Cans, row.ID, &row)
	})
	if err != nil {
		return Can{}, err
	}

	r.log.Info("can updated", zap.Stringer("partition", set.Cans), zap.String("can_id", id), zap.String("actor", actor.ID))
	return toCan(row), nil
}

// Delete removes a can that is not held by an active processing batch.
// Assignment rows left by cancelled batches go with it.
func (r *Registry) Delete(ctx context.Context, actor identity.Actor, rawLine, id string) error {
	line, err := parseLine(rawLine)
	if err != nil {
		return err
	}

	set := r.lines.Line(line)
	err = r.store.Transaction(ctx, func(tx *gorm.DB) error {
		var row model.Can
		if err := store.LockByID(tx, set.Cans, id, &row); err != nil {
			return err
		}
		if _, err := draft.Editable(tx, r.authz, actor, row.DraftID); err != nil {
			return err
		}

		if err := refuseWhileAssigned(tx, set, row); err != nil {
			return err
		}

		if err := set.Assignments.Scope(tx).Where("can_id = ?", id).Delete(&model.ProcessingAssignment{}).Error; err != nil {
			return apperr.FromDB(err, "delete cancelled assignments")
		}
		return apperr.FromDB(set.Cans.Scope(tx).Where("id = ?", id).Delete(&model.Can{}).Error, "delete can")
	})
	if err != nil {
		return err
	}

	r.log.Info("can deleted", zap.Stringer("partition", set.Cans), zap.String("can_id", id), zap.String("actor", actor.ID))
	return nil
}

// refuseWhileAssigned fails with a conflict naming the batch when row is held
// by a processing batch that is not cancelled.
func refuseWhileAssigned(tx *gorm.DB, set partition.Set, row model.Can) error {
	active, err := store.ActiveAssignments(tx, set, []string{row.ID}, "")
	if err != nil {
		return err
	}
	if len(active) > 0 {
		return apperr.Conflict([]string{active[0].BatchID}, "can %s is assigned to processing batch %s", row.Code, active[0].BatchNumber)
	}
	return nil
}

func (r *Registry) ensureCodeFree(tx *gorm.DB, set partition.Set, code, exceptID string) error {
	taken, err := store.Exists(tx, set.Cans, "code = ? AND id <> ?", code, exceptID)
	if err != nil {
		return err
	}
	if taken {
		return apperr.Conflict([]string{code}, "can code %s already exists in %s", code, set.Line)
	}
	return nil
}

func (r *Registry) requireDraftAccess(db *gorm.DB, actor identity.Actor, draftID string) error {
	var d model.Draft
	if err := store.FindByID(db, r.drafts, draftID, &d); err != nil {
		return err
	}
	return identity.Require(r.authz, actor, d.CreatedBy, "draft "+draftID)
}
