// Package diff compares partial SKU snapshots field by field. It is pure:
// no I/O, no clock, deterministic output order.
package diff

import "skucatalog/pkg/domain"

// comparable fields, in emission order. Identity and audit fields are
// excluded from comparison.
var fields = []struct {
	name string
	get  func(domain.SKU) string
}{
	{"name", func(s domain.SKU) string { return s.Name }},
	{"manufacturer", func(s domain.SKU) string { return s.Manufacturer }},
	{"dosage_form", func(s domain.SKU) string { return s.DosageForm }},
	{"strength", func(s domain.SKU) string { return s.Strength }},
	{"package_size", func(s domain.SKU) string { return s.PackageSize }},
}

// Fields returns the ordered list of differences between two partial
// snapshots. An empty string counts as "absent" on either side; equal values
// (including both absent) produce no entry, so a fully equal pair yields an
// empty list.
func Fields(old, updated domain.SKU) []domain.FieldChange {
	var changes []domain.FieldChange
	for _, f := range fields {
		oldValue := f.get(old)
		newValue := f.get(updated)
		if oldValue == newValue {
			continue
		}
		changes = append(changes, domain.FieldChange{
			Field:      f.name,
			OldValue:   presentOrNil(oldValue),
			NewValue:   presentOrNil(newValue),
			ChangeType: classify(oldValue, newValue),
		})
	}
	return changes
}

// classify derives the change type from value presence: added iff the old
// side is absent, removed iff the new side is absent, modified otherwise.
func classify(oldValue, newValue string) domain.ChangeType {
	switch {
	case oldValue == "":
		return domain.ChangeAdded
	case newValue == "":
		return domain.ChangeRemoved
	default:
		return domain.ChangeModified
	}
}

func presentOrNil(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
