// Package stage holds the rules shared by the packaging and labeling
// lifecycles: product-line field branches and completion-driven status.
package stage

import (
	"sort"

	"batchtrack-backend/internal/apperr"
	"batchtrack-backend/internal/model"
)

// Fields names the columns a stage records, split into what every line
// requires and what each line requires on its own branch.
type Fields struct {
	Common []string
	Branch map[model.ProductLine][]string
}

// Required returns every field line must fill before completion.
func (f Fields) Required(line model.ProductLine) []string {
	out := make([]string, 0, len(f.Common)+len(f.Branch[line]))
	out = append(out, f.Common...)
	return append(out, f.Branch[line]...)
}

// Foreign returns the names in supplied that belong to another line's branch.
func (f Fields) Foreign(line model.ProductLine, supplied []string) []string {
	own := make(map[string]bool)
	for _, name := range f.Required(line) {
		own[name] = true
	}
	other := make(map[string]bool)
	for l, names := range f.Branch {
		if l == line {
			continue
		}
		for _, name := range names {
			if !own[name] {
				other[name] = true
			}
		}
	}

	var out []string
	for _, name := range supplied {
		if other[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Missing returns the required fields of line for which set reports false.
func (f Fields) Missing(line model.ProductLine, set map[string]bool) []string {
	var out []string
	for _, name := range f.Required(line) {
		if !set[name] {
			out = append(out, name)
		}
	}
	return out
}

// CheckBranch rejects supplied fields that belong to another product line.
func (f Fields) CheckBranch(line model.ProductLine, supplied []string) error {
	if foreign := f.Foreign(line, supplied); len(foreign) > 0 {
		return apperr.BusinessRule(foreign, "fields do not apply to product line %s", line)
	}
	return nil
}

// ParseStatus validates an optional caller-supplied status.
func ParseStatus(raw *string) (*model.StageStatus, error) {
	if raw == nil {
		return nil, nil
	}
	status := model.StageStatus(*raw)
	if !status.Valid() {
		return nil, apperr.Validation("unknown status %q", *raw)
	}
	return &status, nil
}

// ResolveStatus returns the status a stage batch takes after an update.
// Without an explicit status the batch completes, which needs every required
// field. An explicit non-completed status is kept as is.
func ResolveStatus(explicit *model.StageStatus, missing []string) (model.StageStatus, error) {
	if explicit != nil && *explicit != model.StageCompleted {
		return *explicit, nil
	}
	if len(missing) > 0 {
		return "", apperr.BusinessRule(missing, "required fields are missing")
	}
	return model.StageCompleted, nil
}

// NonNegative rejects negative values in fields.
func NonNegative(fields map[string]float64) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if fields[name] < 0 {
			return apperr.Validation("%s must not be negative, got %v", name, fields[name])
		}
	}
	return nil
}
