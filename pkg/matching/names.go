package matching

// MaxOverNames compares every name of a with every name of b and returns the best score.
// Names are an entity's name followed by its aliases. Empty names are skipped.
func MaxOverNames(a, b []string, compare func(a, b string) float64) float64 {
	best := 0.0
	for _, x := range a {
		if x == "" {
			continue
		}
		for _, y := range b {
			if y == "" {
				continue
			}
			if score := compare(x, y); score > best {
				best = score
			}
		}
	}
	return best
}

// CommonNames returns the names present in both lists, in the order of a
func CommonNames(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, y := range b {
		set[y] = struct{}{}
	}
	var common []string
	seen := make(map[string]struct{})
	for _, x := range a {
		if _, ok := set[x]; !ok {
			continue
		}
		if _, dup := seen[x]; dup {
			continue
		}
		seen[x] = struct{}{}
		common = append(common, x)
	}
	return common
}
