package models

// ClampIntegrations removes duplicates while preserving first-seen order
// and truncates the result at MaxIntegrations.
func ClampIntegrations(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) == MaxIntegrations {
			break
		}
	}
	return out
}
