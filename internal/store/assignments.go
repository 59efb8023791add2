package store

import (
	"fmt"
	"sort"

	"gorm.io/gorm"

	"batchtrack-backend/internal/apperr"
	"batchtrack-backend/internal/model"
	"batchtrack-backend/internal/partition"
)

// ActiveAssignment is a can held by a processing batch that is not cancelled.
type ActiveAssignment struct {
	CanID       string
	BatchID     string
	BatchNumber string
}

// ActiveAssignments returns the assignments of canIDs to non-cancelled
// batches in set's partition, skipping exceptBatchID when it is not empty.
func ActiveAssignments(db *gorm.DB, set partition.Set, canIDs []string, exceptBatchID string) ([]ActiveAssignment, error) {
	if len(canIDs) == 0 {
		return nil, nil
	}
	assignments, batches := set.Assignments.Table(), set.Processing.Table()

	q := set.Assignments.Scope(db).
		Select(fmt.Sprintf("%s.can_id AS can_id, %s.batch_id AS batch_id, pb.batch_number AS batch_number", assignments, assignments)).
		Joins(fmt.Sprintf("JOIN %s pb ON pb.id = %s.batch_id", batches, assignments)).
		Where(fmt.Sprintf("%s.can_id IN ?", assignments), canIDs).
		Where("pb.status <> ?", model.ProcessingCancelled)
	if exceptBatchID != "" {
		q = q.Where("pb.id <> ?", exceptBatchID)
	}

	var rows []ActiveAssignment
	if err := q.Scan(&rows).Error; err != nil {
		return nil, apperr.FromDB(err, "load active assignments")
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CanID < rows[j].CanID })
	return rows, nil
}

// CanIDs lists the can IDs of rows.
func CanIDs(rows []ActiveAssignment) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.CanID)
	}
	return ids
}
