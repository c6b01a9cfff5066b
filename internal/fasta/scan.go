package fasta

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrNotFasta is returned when sequence data appears before any header.
var ErrNotFasta = errors.New("not a FASTA file")

// Record describes one sequence. Only the length is kept; sequences of a
// metagenome assembly are far too large to hold.
type Record struct {
	ID     string
	Header string
	Length int
}

// Scan reads FASTA from r and calls emit once per record. Cancellation via
// ctx is honored between lines.
func Scan(ctx context.Context, r io.Reader, emit func(Record) error) error {
	sc := bufio.NewScanner(r)
	const maxLine = 64 * 1024 * 1024 // allow very long single-line sequences (64 MiB)
	buf := make([]byte, 64*1024)
	sc.Buffer(buf, maxLine)

	var (
		cur    Record
		inside bool
	)
	for sc.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if inside {
				if err := emit(cur); err != nil {
					return err
				}
			}
			hdr := string(bytes.TrimSpace(line[1:]))
			cur = Record{ID: parseHeaderID(line[1:]), Header: hdr}
			inside = true
			continue
		}
		if !inside {
			return ErrNotFasta
		}
		cur.Length += len(bytes.TrimSpace(line))
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("fasta scan: %w", err)
	}
	if inside {
		return emit(cur)
	}
	return nil
}

// ScanFile opens path (gzip aware) and scans it.
func ScanFile(ctx context.Context, path string, emit func(Record) error) error {
	rc, err := Open(path)
	if err != nil {
		return err
	}
	defer rc.Close()
	return Scan(ctx, rc, emit)
}

// IDs returns the record ids of a file in order.
func IDs(ctx context.Context, path string) ([]string, error) {
	var out []string
	err := ScanFile(ctx, path, func(r Record) error {
		out = append(out, r.ID)
		return nil
	})
	return out, err
}

func parseHeaderID(hdr []byte) string {
	hdr = bytes.TrimSpace(hdr)
	if i := bytes.IndexAny(hdr, " \t"); i >= 0 {
		return string(hdr[:i])
	}
	return string(hdr)
}
