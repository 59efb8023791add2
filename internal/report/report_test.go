package report

import (
	"context"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"batchtrack-backend/internal/apperr"
	"batchtrack-backend/internal/model"
	"batchtrack-backend/internal/partition"
	"batchtrack-backend/internal/store"
	"batchtrack-backend/internal/testutil"
)

const yesterday = "2026-10-13"

type seeder struct {
	t  *testing.T
	db *gorm.DB
}

func (s seeder) create(h partition.Handle, row any) {
	s.t.Helper()
	require.NoError(s.t, h.Scope(s.db).Create(row).Error)
}

func (s seeder) draft(date string, status model.DraftStatus) string {
	d := model.Draft{ID: uuid.NewString(), CollectionDate: date, Status: status, CreatedBy: uuid.NewString()}
	s.create(partition.ResolveShared(partition.KindDraft), &d)
	return d.ID
}

func (s seeder) can(line model.ProductLine, draftID, code string, qty float64) string {
	c := model.Can{
		ID: uuid.NewString(), Code: code, DraftID: draftID, CenterID: "c1", ProductLine: line,
		Brix: 10, PH: 5, Quantity: qty, CreatedBy: testutil.Collector.ID,
	}
	s.create(partition.Resolve(partition.KindCan, line), &c)
	return c.ID
}

func (s seeder) batch(line model.ProductLine, number, date string, status model.ProcessingStatus, yield, usage, cost *float64, cans ...string) string {
	set := partition.For(line)
	b := model.ProcessingBatch{
		ID: uuid.NewString(), BatchNumber: number, ScheduledDate: date, Status: status,
		OutputYield: yield, ConsumableUsage: usage, ConsumableCost: cost, CreatedBy: testutil.Operator.ID,
	}
	s.create(set.Processing, &b)
	for _, id := range cans {
		s.create(set.Assignments, &model.ProcessingAssignment{BatchID: b.ID, CanID: id})
	}
	return b.ID
}

func sorted(ids ...string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}

func TestDailyReport(t *testing.T) {
	db := testutil.NewDB(t)
	s := seeder{t: t, db: db}
	f, n := testutil.Float, testutil.Int
	today := testutil.Today

	d1 := s.draft(today, model.DraftStatusSubmitted)
	d2 := s.draft(today, model.DraftStatusSubmitted)
	open := s.draft(today, model.DraftStatusDraft)
	old := s.draft(yesterday, model.DraftStatusSubmitted)

	a1 := s.can(model.StreamA, d1, "A-00001", 10)
	s.can(model.StreamA, d1, "A-00002", 20)
	s.can(model.StreamA, open, "A-00003", 99)
	s.can(model.StreamA, old, "A-00004", 99)
	b1 := s.can(model.StreamB, d1, "B-00001", 5)
	s.can(model.StreamB, d2, "B-00002", 7)

	p1 := s.batch(model.StreamA, "01", today, model.ProcessingCompleted, f(8), f(2), f(3), a1)
	s.batch(model.StreamA, "02", today, model.ProcessingInProgress, nil, f(1), nil)
	s.batch(model.StreamA, "03", today, model.ProcessingCancelled, f(50), f(50), f(50))
	s.batch(model.StreamA, "04", yesterday, model.ProcessingCompleted, f(50), nil, nil)
	q1 := s.batch(model.StreamB, "01", today, model.ProcessingCompleted, f(4), nil, f(1.5), b1)

	k1 := model.PackagingBatch{
		ID: uuid.NewString(), ProcessingBatchID: p1, Status: model.StageCompleted, StartedDate: today,
		FinishedQuantity: f(8), BottlesUsed: n(16), CapsUsed: n(16), CreatedBy: testutil.Operator.ID,
	}
	s.create(partition.For(model.StreamA).Packaging, &k1)
	k2 := model.PackagingBatch{
		ID: uuid.NewString(), ProcessingBatchID: q1, Status: model.StageInProgress, StartedDate: today,
		FinishedQuantity: f(4), PouchesUsed: n(8), CreatedBy: testutil.Operator.ID,
	}
	s.create(partition.For(model.StreamB).Packaging, &k2)
	s.create(partition.For(model.StreamA).Labeling, &model.LabelingBatch{
		ID: uuid.NewString(), PackagingBatchID: k1.ID, Status: model.StageCompleted, LabeledDate: today,
		LabeledQuantity: f(8), LabelsUsed: n(8), SealsUsed: n(8), CreatedBy: testutil.Operator.ID,
	})

	agg := NewAggregator(store.NewGormStore(db), zap.NewNop())
	got, err := agg.DailyReport(context.Background(), today)
	require.NoError(t, err)

	streamA := Totals{
		Collection: Collection{DraftCount: 1, CanCount: 2, Quantity: 30, DraftIDs: []string{d1}},
		Processing: Processing{BatchCount: 2, CompletedCount: 1, CanCount: 1, InputQuantity: 10, OutputYield: 8, ConsumableUsage: 3, ConsumableCost: 3},
		Packaging:  Packaging{BatchCount: 1, CompletedCount: 1, FinishedQuantity: 8, BottlesUsed: 16, CapsUsed: 16},
		Labeling:   Labeling{BatchCount: 1, CompletedCount: 1, LabeledQuantity: 8, LabelsUsed: 8, SealsUsed: 8},
	}
	streamB := Totals{
		Collection: Collection{DraftCount: 2, CanCount: 2, Quantity: 12, DraftIDs: sorted(d1, d2)},
		Processing: Processing{BatchCount: 1, CompletedCount: 1, CanCount: 1, InputQuantity: 5, OutputYield: 4, ConsumableCost: 1.5},
		Packaging:  Packaging{BatchCount: 1, FinishedQuantity: 4, PouchesUsed: 8},
		Labeling:   Labeling{},
	}
	want := Report{
		Date:  today,
		Lines: map[model.ProductLine]Totals{model.StreamA: streamA, model.StreamB: streamB},
		Combined: Totals{
			Collection: Collection{DraftCount: 2, CanCount: 4, Quantity: 42, DraftIDs: sorted(d1, d2)},
			Processing: Processing{BatchCount: 3, CompletedCount: 2, CanCount: 2, InputQuantity: 15, OutputYield: 12, ConsumableUsage: 3, ConsumableCost: 4.5},
			Packaging:  Packaging{BatchCount: 2, CompletedCount: 1, FinishedQuantity: 12, BottlesUsed: 16, CapsUsed: 16, PouchesUsed: 8},
			Labeling:   Labeling{BatchCount: 1, CompletedCount: 1, LabeledQuantity: 8, LabelsUsed: 8, SealsUsed: 8},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DailyReport mismatch (-want +got):\n%s", diff)
	}

	// The combined totals are the sum of the lines, with d1 counted once.
	if diff := cmp.Diff(Combine(got.Lines[model.StreamA], got.Lines[model.StreamB]), got.Combined); diff != "" {
		t.Errorf("combined totals mismatch (-want +got):\n%s", diff)
	}
	assert.Less(t, got.Combined.Collection.DraftCount,
		got.Lines[model.StreamA].Collection.DraftCount+got.Lines[model.StreamB].Collection.DraftCount)
}

func TestDailyReport_EmptyDayAndValidation(t *testing.T) {
	agg := NewAggregator(store.NewGormStore(testutil.NewDB(t)), zap.NewNop())
	ctx := context.Background()

	got, err := agg.DailyReport(ctx, testutil.Today)
	require.NoError(t, err)
	empty := Totals{Collection: Collection{DraftIDs: []string{}}}
	if diff := cmp.Diff(Report{
		Date:     testutil.Today,
		Lines:    map[model.ProductLine]Totals{model.StreamA: empty, model.StreamB: empty},
		Combined: empty,
	}, got); diff != "" {
		t.Errorf("empty report mismatch (-want +got):\n%s", diff)
	}

	_, err = agg.DailyReport(ctx, "14/10/2026")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDailyReport_ConcurrentCallsAgree(t *testing.T) {
	db := testutil.NewDB(t)
	s := seeder{t: t, db: db}
	d := s.draft(testutil.Today, model.DraftStatusSubmitted)
	s.can(model.StreamA, d, "A-00001", 10)
	s.can(model.StreamB, d, "B-00001", 12)
	agg := NewAggregator(store.NewGormStore(db), zap.NewNop())

	const calls = 8
	reports := make([]Report, calls)
	var g errgroup.Group
	for i := range calls {
		g.Go(func() error {
			r, err := agg.DailyReport(context.Background(), testutil.Today)
			reports[i] = r
			return err
		})
	}
	require.NoError(t, g.Wait())
	for _, r := range reports[1:] {
		assert.Empty(t, cmp.Diff(reports[0], r))
	}
	assert.Equal(t, 1, reports[0].Combined.Collection.DraftCount)
	assert.Equal(t, 22.0, reports[0].Combined.Collection.Quantity)
}

func TestCombine(t *testing.T) {
	a := Totals{Collection: Collection{DraftCount: 2, CanCount: 3, Quantity: 1.5, DraftIDs: []string{"d1", "d2"}}}
	b := Totals{Collection: Collection{DraftCount: 2, CanCount: 1, Quantity: 2, DraftIDs: []string{"d2", "d3"}}}

	got := Combine(a, b)
	assert.Equal(t, []string{"d1", "d2", "d3"}, got.Collection.DraftIDs)
	assert.Equal(t, 3, got.Collection.DraftCount)
	assert.Equal(t, 4, got.Collection.CanCount)
	assert.Equal(t, 3.5, got.Collection.Quantity)
}
