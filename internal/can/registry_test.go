package can

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"batchtrack-backend/internal/apperr"
	"batchtrack-backend/internal/draft"
	"batchtrack-backend/internal/model"
	"batchtrack-backend/internal/partition"
	"batchtrack-backend/internal/store"
	"batchtrack-backend/internal/testutil"
)

type fixture struct {
	reg     *Registry
	drafts  *draft.Service
	db      *gorm.DB
	centers []model.CollectionCenter
	draftID string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewDB(t)
	centers := testutil.SeedCenters(t, db, "NORTH", "SOUTH")
	st := store.NewGormStore(db)
	dir := store.NewCenterDirectory(db, time.Minute)

	drafts := draft.NewService(st, testutil.Authorizer(), testutil.Calendar(), dir, zap.NewNop())
	d, err := drafts.Create(context.Background(), testutil.Collector, draft.CreateInput{})
	require.NoError(t, err)

	return fixture{
		reg:     NewRegistry(st, testutil.Authorizer(), dir, zap.NewNop()),
		drafts:  drafts,
		db:      db,
		centers: centers,
		draftID: d.ID,
	}
}

func (f fixture) input(line model.ProductLine, code string) CreateInput {
	return CreateInput{
		DraftID:     f.draftID,
		CenterID:    f.centers[0].ID,
		ProductLine: string(line),
		Code:        code,
		Brix:        14.5,
		PH:          5.2,
		Quantity:    25,
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.reg.Create(ctx, testutil.Collector, f.input(model.StreamA, "42"))
	require.NoError(t, err)
	assert.Equal(t, "A-00042", c.Code)
	assert.Equal(t, model.StreamA, c.ProductLine)
	assert.Equal(t, testutil.Collector.ID, c.CreatedBy)

	_, err = f.reg.Create(ctx, testutil.Collector, f.input(model.StreamA, "A-00042"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, []string{"A-00042"}, apperr.DetailsOf(err))

	b, err := f.reg.Create(ctx, testutil.Collector, f.input(model.StreamB, "42"))
	require.NoError(t, err)
	assert.Equal(t, "B-00042", b.Code)

	var count int64
	require.NoError(t, f.db.Table("stream_b_cans").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testCases := []struct {
		name   string
		mutate func(in *CreateInput)
		kind   apperr.Kind
	}{
		{"unknown line", func(in *CreateInput) { in.ProductLine = "stream_c" }, apperr.KindValidation},
		{"wrong prefix", func(in *CreateInput) { in.Code = "B-00001" }, apperr.KindValidation},
		{"malformed code", func(in *CreateInput) { in.Code = "A-1234567" }, apperr.KindValidation},
		{"brix too high", func(in *CreateInput) { in.Brix = 120 }, apperr.KindValidation},
		{"negative ph", func(in *CreateInput) { in.PH = -1 }, apperr.KindValidation},
		{"zero quantity", func(in *CreateInput) { in.Quantity = 0 }, apperr.KindValidation},
		{"unknown center", func(in *CreateInput) { in.CenterID = "nowhere" }, apperr.KindNotFound},
		{"unknown draft", func(in *CreateInput) { in.DraftID = "missing" }, apperr.KindNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := f.input(model.StreamA, "7")
			tc.mutate(&in)
			_, err := f.reg.Create(ctx, testutil.Collector, in)
			assert.Equal(t, tc.kind, apperr.KindOf(err), "%v", err)
		})
	}
}

func TestCreate_RequiresOpenOwnedDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.reg.Create(ctx, testutil.Other, f.input(model.StreamA, "1"))
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.drafts.SubmitCenter(ctx, testutil.Collector, f.draftID, f.centers[0].ID)
	require.NoError(t, err)
	_, err = f.drafts.Submit(ctx, testutil.Collector, f.draftID)
	require.NoError(t, err)

	_, err = f.reg.Create(ctx, testutil.Collector, f.input(model.StreamA, "1"))
	assert.Equal(t, apperr.KindBusinessRule, apperr.KindOf(err))
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.reg.Create(ctx, testutil.Collector, f.input(model.StreamA, "1"))
	require.NoError(t, err)
	_, err = f.reg.Create(ctx, testutil.Collector, f.input(model.StreamA, "2"))
	require.NoError(t, err)

	updated, err := f.reg.Update(ctx, testutil.Collector, string(model.StreamA), c.ID, UpdateInput{
		Code:     testutil.String("3"),
		CenterID: &f.centers[1].ID,
		Quantity: testutil.Float(30),
	})
	require.NoError(t, err)
	assert.Equal(t, "A-00003", updated.Code)
	assert.Equal(t, f.centers[1].ID, updated.CenterID)
	assert.Equal(t, 30.0, updated.Quantity)
	assert.Equal(t, 14.5, updated.Brix)

	_, err = f.reg.Update(ctx, testutil.Collector, string(model.StreamA), c.ID, UpdateInput{Code: testutil.String("A-00002")})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = f.reg.Update(ctx, testutil.Collector, string(model.StreamA), c.ID, UpdateInput{ProductLine: testutil.String(string(model.StreamB))})
	assert.Equal(t, apperr.KindBusinessRule, apperr.KindOf(err))

	_, err = f.reg.Update(ctx, testutil.Collector, string(model.StreamA), c.ID, UpdateInput{PH: testutil.Float(15)})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.reg.Update(ctx, testutil.Collector, string(model.StreamB), c.ID, UpdateInput{Quantity: testutil.Float(1)})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	got, err := f.reg.Get(ctx, testutil.Collector, string(model.StreamA), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "A-00003", got.Code)
	assert.Equal(t, 5.2, got.PH)
}

func TestListByDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.reg.Create(ctx, testutil.Collector, f.input(model.StreamB, "5"))
	require.NoError(t, err)
	_, err = f.reg.Create(ctx, testutil.Collector, f.input(model.StreamA, "9"))
	require.NoError(t, err)
	in := f.input(model.StreamA, "1")
	in.CenterID = f.centers[1].ID
	_, err = f.reg.Create(ctx, testutil.Collector, in)
	require.NoError(t, err)

	all, err := f.reg.ListByDraft(ctx, testutil.Collector, f.draftID, ListFilter{})
	require.NoError(t, err)
	codes := make([]string, 0, len(all))
	for _, c := range all {
		codes = append(codes, c.Code)
	}
	assert.Equal(t, []string{"A-00001", "A-00009", "B-00005"}, codes)

	onlyB, err := f.reg.ListByDraft(ctx, testutil.Collector, f.draftID, ListFilter{ProductLine: string(model.StreamB)})
	require.NoError(t, err)
	require.Len(t, onlyB, 1)

	south, err := f.reg.ListByDraft(ctx, testutil.Collector, f.draftID, ListFilter{CenterID: f.centers[1].ID})
	require.NoError(t, err)
	require.Len(t, south, 1)
	assert.Equal(t, "A-00001", south[0].Code)

	_, err = f.reg.ListByDraft(ctx, testutil.Other, f.draftID, ListFilter{})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestDelete_RefusedWhileAssigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.reg.Create(ctx, testutil.Collector, f.input(model.StreamA, "1"))
	require.NoError(t, err)

	set := partition.For(model.StreamA)
	batch := model.ProcessingBatch{
		ID: uuid.NewString(), BatchNumber: "01", ScheduledDate: testutil.Today,
		Status: model.ProcessingInProgress, CreatedBy: testutil.Operator.ID,
	}
	require.NoError(t, set.Processing.Scope(f.db).Create(&batch).Error)
	require.NoError(t, set.Assignments.Scope(f.db).Create(&model.ProcessingAssignment{BatchID: batch.ID, CanID: c.ID}).Error)

	err = f.reg.Delete(ctx, testutil.Collector, string(model.StreamA), c.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, []string{batch.ID}, apperr.DetailsOf(err))

	require.NoError(t, set.Processing.Scope(f.db).Where("id = ?", batch.ID).Update("status", model.ProcessingCancelled).Error)
	require.NoError(t, f.reg.Delete(ctx, testutil.Collector, string(model.StreamA), c.ID))

	_, err = f.reg.Get(ctx, testutil.Collector, string(model.StreamA), c.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	var assignments int64
	require.NoError(t, set.Assignments.Scope(f.db).Count(&assignments).Error)
	assert.Zero(t, assignments)
}

func TestUpdate_RefusedWhileAssigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.reg.Create(ctx, testutil.Collector, f.input(model.StreamA, "1"))
	require.NoError(t, err)
	_, err = f.drafts.SubmitCenter(ctx, testutil.Collector, f.draftID, f.centers[0].ID)
	require.NoError(t, err)
	_, err = f.drafts.Submit(ctx, testutil.Collector, f.draftID)
	require.NoError(t, err)

	set := partition.For(model.StreamA)
	batch := model.ProcessingBatch{
		ID: uuid.NewString(), BatchNumber: "01", ScheduledDate: testutil.Today,
		Status: model.ProcessingCompleted, CreatedBy: testutil.Operator.ID,
	}
	require.NoError(t, set.Processing.Scope(f.db).Create(&batch).Error)
	require.NoError(t, set.Assignments.Scope(f.db).Create(&model.ProcessingAssignment{BatchID: batch.ID, CanID: c.ID}).Error)

	// reopening the draft does not release cans held by a batch
	_, err = f.drafts.Reopen(ctx, testutil.Collector, f.draftID)
	require.NoError(t, err)

	_, err = f.reg.Update(ctx, testutil.Collector, string(model.StreamA), c.ID, UpdateInput{Quantity: testutil.Float(99)})
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, []string{batch.ID}, apperr.DetailsOf(err))

	got, err := f.reg.Get(ctx, testutil.Collector, string(model.StreamA), c.ID)
	require.NoError(t, err)
	assert.InDelta(t, 25, got.Quantity, 1e-9)

	require.NoError(t, set.Processing.Scope(f.db).Where("id = ?", batch.ID).Update("status", model.ProcessingCancelled).Error)
	updated, err := f.reg.Update(ctx, testutil.Collector, string(model.StreamA), c.ID, UpdateInput{Quantity: testutil.Float(99)})
	require.NoError(t, err)
	assert.InDelta(t, 99, updated.Quantity, 1e-9)
}
