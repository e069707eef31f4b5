package aggregate

import "unicode/utf8"

// similarityThreshold is the overlap above which two items are the same goal.
const similarityThreshold = 0.8

// Similarity is the share of a's runes that occur anywhere in b, counted with
// a's multiplicity and divided by the longer length.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	inB := make(map[rune]struct{}, len(b))
	for _, r := range b {
		inB[r] = struct{}{}
	}
	common := 0
	for _, r := range a {
		if _, ok := inB[r]; ok {
			common++
		}
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	return float64(common) / float64(max(la, lb))
}

// Dedup removes exact duplicates keeping first occurrences, then collapses
// near-duplicates. When an item matches a kept one, the longer string wins and
// moves to the end of the list. The collapse repeats until a pass merges
// nothing, so Dedup(Dedup(x)) equals Dedup(x).
func Dedup(items []string) []string {
	if len(items) == 0 {
		return []string{}
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, dup := seen[it]; dup {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}

	// Every merge drops one item, so an unchanged length means a clean pass.
	for {
		next := collapse(out)
		if len(next) == len(out) {
			return next
		}
		out = next
	}
}

// collapse makes one near-duplicate pass over items.
func collapse(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		dup := false
		for i, kept := range out {
			if Similarity(it, kept) <= similarityThreshold {
				continue
			}
			dup = true
			if utf8.RuneCountInString(it) > utf8.RuneCountInString(kept) {
				out = append(out[:i], out[i+1:]...)
				out = append(out, it)
			}
			break
		}
		if !dup {
			out = append(out, it)
		}
	}
	return out
}
