// Package partition maps a logical entity kind and a product line to the
// physical table that stores it.
package partition

import (
	"fmt"

	"gorm.io/gorm"

	"batchtrack-backend/internal/model"
)

// Kind is a logical entity kind.
type Kind int

const (
	KindDraft Kind = iota + 1
	KindCenterCompletion
	KindCan
	KindProcessingBatch
	KindProcessingAssignment
	KindPackagingBatch
	KindLabelingBatch
)

var kindNames = map[Kind]string{
	KindDraft:                "draft",
	KindCenterCompletion:     "center_completion",
	KindCan:                  "can",
	KindProcessingBatch:      "processing_batch",
	KindProcessingAssignment: "processing_assignment",
	KindPackagingBatch:       "packaging_batch",
	KindLabelingBatch:        "labeling_batch",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Handle is the resolved storage location for one (kind, line) pair.
type Handle struct {
	kind  Kind
	line  model.ProductLine
	table string
}

// Kind returns the entity kind of the handle.
func (h Handle) Kind() Kind { return h.kind }

// Line returns the product line of the handle. Shared partitions report the
// line they were resolved for, or "" when resolved through ResolveShared.
func (h Handle) Line() model.ProductLine { return h.line }

// Table returns the physical table name.
func (h Handle) Table() string { return h.table }

// Shared reports whether both product lines resolve to the same table.
func (h Handle) Shared() bool {
	_, ok := shared[h.kind]
	return ok
}

// Scope returns db narrowed to the handle's table.
func (h Handle) Scope(db *gorm.DB) *gorm.DB {
	return db.Table(h.table)
}

// As returns db narrowed to the handle's table under alias, for joins.
func (h Handle) As(db *gorm.DB, alias string) *gorm.DB {
	return db.Table(h.table + " " + alias)
}

func (h Handle) String() string {
	return h.table
}

// Tables backing kinds that are common to both product lines.
var shared = map[Kind]string{
	KindDraft:            "drafts",
	KindCenterCompletion: "center_completions",
}

// Tables backing per-line kinds.
var perLine = map[model.ProductLine]map[Kind]string{
	model.StreamA: {
		KindCan:                  "stream_a_cans",
		KindProcessingBatch:      "stream_a_processing_batches",
		KindProcessingAssignment: "stream_a_processing_cans",
		KindPackagingBatch:       "stream_a_packaging_batches",
		KindLabelingBatch:        "stream_a_labeling_batches",
	},
	model.StreamB: {
		KindCan:                  "stream_b_cans",
		KindProcessingBatch:      "stream_b_processing_batches",
		KindProcessingAssignment: "stream_b_processing_cans",
		KindPackagingBatch:       "stream_b_packaging_batches",
		KindLabelingBatch:        "stream_b_labeling_batches",
	},
}

var canPrefixes = map[model.ProductLine]string{
	model.StreamA: "A-",
	model.StreamB: "B-",
}

// Resolve returns the partition for kind on line. Unknown inputs are
// programming errors and panic.
func Resolve(kind Kind, line model.ProductLine) Handle {
	if !line.Valid() {
		panic(fmt.Sprintf("partition: unknown product line %q", line))
	}
	if table, ok := shared[kind]; ok {
		return Handle{kind: kind, line: line, table: table}
	}
	table, ok := perLine[line][kind]
	if !ok {
		panic(fmt.Sprintf("partition: unknown entity kind %s", kind))
	}
	return Handle{kind: kind, line: line, table: table}
}

// ResolveShared returns the partition of a kind common to both product lines.
// It panics for per-line kinds.
func ResolveShared(kind Kind) Handle {
	table, ok := shared[kind]
	if !ok {
		panic(fmt.Sprintf("partition: %s is not a shared kind", kind))
	}
	return Handle{kind: kind, table: table}
}

// CanPrefix returns the fixed can-code prefix of line.
func CanPrefix(line model.ProductLine) string {
	prefix, ok := canPrefixes[line]
	if !ok {
		panic(fmt.Sprintf("partition: unknown product line %q", line))
	}
	return prefix
}

// Set bundles every per-line handle of one product line. Lifecycle services
// build one Set per line at construction time.
type Set struct {
	Line        model.ProductLine
	Drafts      Handle
	Completions Handle
	Cans        Handle
	Processing  Handle
	Assignments Handle
	Packaging   Handle
	Labeling    Handle
}

// For resolves the full Set for line.
func For(line model.ProductLine) Set {
	return Set{
		Line:        line,
		Drafts:      Resolve(KindDraft, line),
		Completions: Resolve(KindCenterCompletion, line),
		Cans:        Resolve(KindCan, line),
		Processing:  Resolve(KindProcessingBatch, line),
		Assignments: Resolve(KindProcessingAssignment, line),
		Packaging:   Resolve(KindPackagingBatch, line),
		Labeling:    Resolve(KindLabelingBatch, line),
	}
}

// Registry holds one Set per product line.
type Registry map[model.ProductLine]Set

// NewRegistry resolves the Set of every product line.
func NewRegistry() Registry {
	r := make(Registry, len(model.ProductLines))
	for _, line := range model.ProductLines {
		r[line] = For(line)
	}
	return r
}

// Line returns the Set for line, panicking on an unknown line.
func (r Registry) Line(line model.ProductLine) Set {
	set, ok := r[line]
	if !ok {
		panic(fmt.Sprintf("partition: unknown product line %q", line))
	}
	return set
}
