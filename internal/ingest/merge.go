package ingest

// mergeField is the tri-state upsert policy applied to every enrichable
// field: the computed value wins when the operator asked for an
// overwrite or when nothing is stored yet; otherwise the stored value
// is preserved untouched.
func mergeField(current, computed string, overwrite bool) string {
	if overwrite || current == "" {
		return computed
	}
	return current
}

// mergeList is mergeField for list-valued fields.
func mergeList(current, computed []string, overwrite bool) []string {
	if overwrite || len(current) == 0 {
		return computed
	}
	return current
}
