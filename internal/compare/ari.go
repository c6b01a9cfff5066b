package compare

import "sort"

// AdjustedRandIndex scores how similarly two contig→cluster assignments group
// the contigs present in both, and returns the number of contigs compared.
// The score is 1 for identical partitions regardless of cluster labels and
// close to 0 for unrelated ones. Fewer than two shared contigs score 1.
func AdjustedRandIndex(a, b map[string]string) (float64, int) {
	shared := make([]string, 0, len(a))
	for id := range a {
		if _, ok := b[id]; ok {
			shared = append(shared, id)
		}
	}
	sort.Strings(shared)
	n := len(shared)
	if n < 2 {
		return 1, n
	}

	type pair struct{ x, y string }
	cells := map[pair]int64{}
	rows := map[string]int64{}
	cols := map[string]int64{}
	for _, id := range shared {
		x, y := a[id], b[id]
		cells[pair{x, y}]++
		rows[x]++
		cols[y]++
	}

	var index, sumA, sumB int64
	for _, c := range cells {
		index += choose2(c)
	}
	for _, c := range rows {
		sumA += choose2(c)
	}
	for _, c := range cols {
		sumB += choose2(c)
	}
	total := float64(choose2(int64(n)))
	expected := float64(sumA) * float64(sumB) / total
	maximum := float64(sumA+sumB) / 2
	if maximum == expected {
		// both partitions all singletons or both a single cluster
		return 1, n
	}
	return (float64(index) - expected) / (maximum - expected), n
}

func choose2(n int64) int64 {
	return n * (n - 1) / 2
}
