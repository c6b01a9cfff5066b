package adapter

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/signalnine/metabench/internal/fasta"
)

// table is a tab separated file with a header row.
type table struct {
	header []string
	rows   [][]string
}

func readTable(path string) (*table, error) {
	rc, err := fasta.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	t := &table{}
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if t.header == nil {
			t.header = fields
			continue
		}
		t.rows = append(t.rows, fields)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if t.header == nil {
		return nil, fmt.Errorf("%w: %s is empty", ErrCorruptOutput, path)
	}
	return t, nil
}

// col returns the index of the first header matching any name,
// case-insensitively, or -1.
func (t *table) col(names ...string) int {
	for _, n := range names {
		for i, h := range t.header {
			if strings.EqualFold(strings.TrimSpace(h), n) {
				return i
			}
		}
	}
	return -1
}

// cell returns row[i], or "" when the row is short or i < 0.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
