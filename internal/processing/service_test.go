package processing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"batchtrack-backend/internal/apperr"
	"batchtrack-backend/internal/can"
	"batchtrack-backend/internal/draft"
	"batchtrack-backend/internal/identity"
	"batchtrack-backend/internal/model"
	"batchtrack-backend/internal/partition"
	"batchtrack-backend/internal/store"
	"batchtrack-backend/internal/testutil"
)

type fixture struct {
	svc *Service
	db  *gorm.DB
	// cans of stream_a from a submitted draft
	cans []can.Can
	// can of stream_a from a draft still open
	open can.Can
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	db := testutil.NewDB(t)
	centers := testutil.SeedCenters(t, db, "NORTH")
	st := store.NewGormStore(db)
	dir := store.NewCenterDirectory(db, time.Minute)
	drafts := draft.NewService(st, testutil.Authorizer(), testutil.Calendar(), dir, zap.NewNop())
	reg := can.NewRegistry(st, testutil.Authorizer(), dir, zap.NewNop())

	newCan := func(actor identity.Actor, draftID string, n int) can.Can {
		c, err := reg.Create(ctx, actor, can.CreateInput{
			DraftID: draftID, CenterID: centers[0].ID, ProductLine: string(model.StreamA),
			Code: fmt.Sprint(n), Brix: 12, PH: 5, Quantity: float64(10 * n),
		})
		require.NoError(t, err)
		return c
	}

	submitted, err := drafts.Create(ctx, testutil.Collector, draft.CreateInput{})
	require.NoError(t, err)
	f := fixture{db: db}
	for n := 1; n <= 3; n++ {
		f.cans = append(f.cans, newCan(testutil.Collector, submitted.ID, n))
	}
	_, err = drafts.SubmitCenter(ctx, testutil.Collector, submitted.ID, centers[0].ID)
	require.NoError(t, err)
	_, err = drafts.Submit(ctx, testutil.Collector, submitted.ID)
	require.NoError(t, err)

	open, err := drafts.Create(ctx, testutil.Other, draft.CreateInput{})
	require.NoError(t, err)
	f.open = newCan(testutil.Other, open.ID, 4)

	f.svc = NewService(st, testutil.Authorizer(), testutil.Calendar(), zap.NewNop())
	return f
}

func (f fixture) create(t *testing.T, line model.ProductLine) Batch {
	t.Helper()
	b, err := f.svc.Create(context.Background(), testutil.Operator, CreateInput{ProductLine: string(line)})
	require.NoError(t, err)
	return b
}

func canIDs(cans ...can.Can) []string {
	ids := make([]string, 0, len(cans))
	for _, c := range cans {
		ids = append(ids, c.ID)
	}
	return ids
}

func assignedIDs(b Batch) []string {
	ids := make([]string, 0, len(b.Cans))
	for _, c := range b.Cans {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestCreate_DefaultsDateAndNumbersPerPartition(t *testing.T) {
	f := newFixture(t)

	first := f.create(t, model.StreamA)
	assert.Equal(t, "01", first.BatchNumber)
	assert.Equal(t, testutil.Today, first.ScheduledDate)
	assert.Equal(t, model.ProcessingInProgress, first.Status)
	assert.Zero(t, first.CanCount)

	assert.Equal(t, "02", f.create(t, model.StreamA).BatchNumber)
	assert.Equal(t, "01", f.create(t, model.StreamB).BatchNumber)

	scheduled, err := f.svc.Create(context.Background(), testutil.Operator, CreateInput{
		ProductLine: string(model.StreamA), ScheduledDate: "2026-10-20",
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-20", scheduled.ScheduledDate)

	_, err = f.svc.Create(context.Background(), testutil.Operator, CreateInput{ProductLine: "stream_c"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = f.svc.Create(context.Background(), testutil.Operator, CreateInput{ProductLine: string(model.StreamA), ScheduledDate: "20-10-2026"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSetCans_ConflictLeavesAssignmentUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1, u2, u3 := f.cans[0], f.cans[1], f.cans[2]
	line := string(model.StreamA)

	b1 := f.create(t, model.StreamA)
	b2 := f.create(t, model.StreamA)

	got, err := f.svc.SetCans(ctx, testutil.Operator, line, b1.ID, canIDs(u1, u2))
	require.NoError(t, err)
	assert.ElementsMatch(t, canIDs(u1, u2), assignedIDs(got))
	assert.Equal(t, 30.0, got.InputQuantity)

	_, err = f.svc.SetCans(ctx, testutil.Operator, line, b2.ID, canIDs(u2, u3))
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, []string{u2.ID}, apperr.DetailsOf(err))

	after, err := f.svc.Get(ctx, line, b1.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, canIDs(u1, u2), assignedIDs(after))

	empty, err := f.svc.Get(ctx, line, b2.ID)
	require.NoError(t, err)
	assert.Empty(t, empty.Cans)

	// Replacing the same batch's own cans is not a conflict.
	got, err = f.svc.SetCans(ctx, testutil.Operator, line, b1.ID, canIDs(u2, u3, u3))
	require.NoError(t, err)
	assert.ElementsMatch(t, canIDs(u2, u3), assignedIDs(got))
}

func TestSetCans_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	line := string(model.StreamA)
	b := f.create(t, model.StreamA)

	tooMany := make([]string, 0, model.MaxCansPerBatch+1)
	for i := 0; i <= model.MaxCansPerBatch; i++ {
		tooMany = append(tooMany, uuid.NewString())
	}
	_, err := f.svc.SetCans(ctx, testutil.Operator, line, b.ID, tooMany)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.SetCans(ctx, testutil.Operator, line, b.ID, []string{f.cans[0].ID, "ghost"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, []string{"ghost"}, apperr.DetailsOf(err))

	_, err = f.svc.SetCans(ctx, testutil.Operator, line, b.ID, []string{f.open.ID})
	require.Error(t, err)
	assert.Equal(t, apperr.KindBusinessRule, apperr.KindOf(err))
	assert.Equal(t, []string{f.open.ID}, apperr.DetailsOf(err))

	// A stream_a can does not exist in the stream_b partition.
	other := f.create(t, model.StreamB)
	_, err = f.svc.SetCans(ctx, testutil.Operator, string(model.StreamB), other.ID, []string{f.cans[0].ID})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.svc.Submit(ctx, testutil.Operator, line, b.ID)
	require.NoError(t, err)
	_, err = f.svc.SetCans(ctx, testutil.Operator, line, b.ID, []string{f.cans[0].ID})
	assert.Equal(t, apperr.KindBusinessRule, apperr.KindOf(err))
}

func TestSubmit_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	line := string(model.StreamA)
	b := f.create(t, model.StreamA)
	_, err := f.svc.SetCans(ctx, testutil.Operator, line, b.ID, canIDs(f.cans[0]))
	require.NoError(t, err)

	first, err := f.svc.Submit(ctx, testutil.Operator, line, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProcessingCompleted, first.Status)
	require.NotNil(t, first.CompletedAt)

	second, err := f.svc.Submit(ctx, testutil.Operator, line, b.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	assert.True(t, first.CompletedAt.Equal(*second.CompletedAt))
	assert.Equal(t, assignedIDs(first), assignedIDs(second))
}

func insertDownstream(t *testing.T, db *gorm.DB, processingID string) (model.PackagingBatch, model.LabelingBatch) {
	t.Helper()
	set := partition.For(model.StreamA)
	pkg := model.PackagingBatch{
		ID: uuid.NewString(), ProcessingBatchID: processingID, Status: model.StageCompleted,
		StartedDate: testutil.Today, CreatedBy: testutil.Operator.ID,
	}
	require.NoError(t, set.Packaging.Scope(db).Create(&pkg).Error)
	lbl := model.LabelingBatch{
		ID: uuid.NewString(), PackagingBatchID: pkg.ID, Status: model.StagePending,
		LabeledDate: testutil.Today, CreatedBy: testutil.Operator.ID,
	}
	require.NoError(t, set.Labeling.Scope(db).Create(&lbl).Error)
	return pkg, lbl
}

func count(t *testing.T, db *gorm.DB, h partition.Handle, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.Scope(db).Where(query, args...).Count(&n).Error)
	return n
}

func TestReopen_CascadesDownstream(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	line := string(model.StreamA)
	set := partition.For(model.StreamA)
	b := f.create(t, model.StreamA)

	_, err := f.svc.Reopen(ctx, testutil.Operator, line, b.ID)
	assert.Equal(t, apperr.KindBusinessRule, apperr.KindOf(err))

	_, err = f.svc.Submit(ctx, testutil.Operator, line, b.ID)
	require.NoError(t, err)
	pkg, lbl := insertDownstream(t, f.db, b.ID)

	reopened, err := f.svc.Reopen(ctx, testutil.Operator, line, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProcessingInProgress, reopened.Status)
	assert.Nil(t, reopened.CompletedAt)

	assert.Zero(t, count(t, f.db, set.Packaging, "id = ?", pkg.ID))
	assert.Zero(t, count(t, f.db, set.Labeling, "id = ?", lbl.ID))
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	line := string(model.StreamA)

	b := f.create(t, model.StreamA)
	_, err := f.svc.SetCans(ctx, testutil.Operator, line, b.ID, canIDs(f.cans[0]))
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, testutil.Operator, line, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProcessingCancelled, cancelled.Status)

	for name, op := range map[string]func(context.Context, identity.Actor, string, string) (Batch, error){
		"submit": f.svc.Submit,
		"reopen": f.svc.Reopen,
		"cancel": f.svc.Cancel,
	} {
		_, err := op(ctx, testutil.Operator, line, b.ID)
		assert.Equal(t, apperr.KindBusinessRule, apperr.KindOf(err), name)
	}
	_, err = f.svc.UpdateMetrics(ctx, testutil.Operator, line, b.ID, MetricsInput{OutputYield: testutil.Float(1)})
	assert.Equal(t, apperr.KindBusinessRule, apperr.KindOf(err))

	// The cancelled batch no longer holds its can.
	next := f.create(t, model.StreamA)
	got, err := f.svc.SetCans(ctx, testutil.Operator, line, next.ID, canIDs(f.cans[0]))
	require.NoError(t, err)
	assert.Equal(t, canIDs(f.cans[0]), assignedIDs(got))

	completed := f.create(t, model.StreamA)
	_, err = f.svc.Submit(ctx, testutil.Operator, line, completed.ID)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, testutil.Operator, line, completed.ID)
	assert.Equal(t, apperr.KindBusinessRule, apperr.KindOf(err))
}

func TestUpdateMetrics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	line := string(model.StreamA)
	b := f.create(t, model.StreamA)

	got, err := f.svc.UpdateMetrics(ctx, testutil.Operator, line, b.ID, MetricsInput{
		ScheduledDate:   testutil.String("2026-10-15"),
		OutputYield:     testutil.Float(42.5),
		ConsumableUsage: testutil.Float(3),
		Notes:           testutil.String("second boiler"),
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-15", got.ScheduledDate)
	require.NotNil(t, got.OutputYield)
	assert.Equal(t, 42.5, *got.OutputYield)
	assert.Equal(t, 3.0, *got.ConsumableUsage)
	assert.Nil(t, got.ConsumableCost)
	assert.Equal(t, "second boiler", got.Notes)

	_, err = f.svc.UpdateMetrics(ctx, testutil.Operator, line, b.ID, MetricsInput{ProductLine: testutil.String(string(model.StreamB))})
	assert.Equal(t, apperr.KindBusinessRule, apperr.KindOf(err))

	_, err = f.svc.UpdateMetrics(ctx, testutil.Operator, line, b.ID, MetricsInput{ConsumableCost: testutil.Float(-1)})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.UpdateMetrics(ctx, testutil.Operator, line, "missing", MetricsInput{})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	line := string(model.StreamA)
	set := partition.For(model.StreamA)

	b := f.create(t, model.StreamA)
	_, err := f.svc.SetCans(ctx, testutil.Operator, line, b.ID, canIDs(f.cans...))
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, testutil.Operator, line, b.ID)
	require.NoError(t, err)
	pkg, lbl := insertDownstream(t, f.db, b.ID)

	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(f.svc.Delete(ctx, testutil.Collector, line, b.ID)))

	require.NoError(t, f.svc.Delete(ctx, testutil.Admin, line, b.ID))
	assert.Zero(t, count(t, f.db, set.Processing, "id = ?", b.ID))
	assert.Zero(t, count(t, f.db, set.Assignments, "batch_id = ?", b.ID))
	assert.Zero(t, count(t, f.db, set.Packaging, "id = ?", pkg.ID))
	assert.Zero(t, count(t, f.db, set.Labeling, "id = ?", lbl.ID))

	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(f.svc.Delete(ctx, testutil.Admin, line, b.ID)))
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	line := string(model.StreamA)

	b1 := f.create(t, model.StreamA)
	b2 := f.create(t, model.StreamA)
	_, err := f.svc.SetCans(ctx, testutil.Operator, line, b1.ID, canIDs(f.cans[0], f.cans[2]))
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, testutil.Operator, line, b1.ID)
	require.NoError(t, err)

	all, err := f.svc.List(ctx, line, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b2.ID, all[0].ID)
	assert.Equal(t, 2, all[1].CanCount)
	assert.Equal(t, 40.0, all[1].InputQuantity)
	assert.Empty(t, all[1].Cans)

	completed, err := f.svc.List(ctx, line, ListFilter{Status: string(model.ProcessingCompleted), Date: testutil.Today})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, b1.ID, completed[0].ID)

	_, err = f.svc.List(ctx, line, ListFilter{Status: "done"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	other, err := f.svc.List(ctx, string(model.StreamB), ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, dedupe([]string{"b", "a", "", "b"}))
	assert.Empty(t, dedupe(nil))
}
