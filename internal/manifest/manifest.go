// Package manifest parses the delimited filelists that enumerate training
// records. Each non-empty line is one record: "path<sep>text" in
// single-speaker mode or "path<sep>speaker<sep>text" in multi-speaker mode.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// DefaultSeparator is the conventional filelist field separator.
const DefaultSeparator = "|"

// ErrMalformedRecord is returned when a line has the wrong field count for
// the active speaker mode, or a non-integer speaker id.
var ErrMalformedRecord = errors.New("malformed manifest record")

// Record is one parsed filelist entry. Speaker is meaningful only when the
// manifest was parsed in multi-speaker mode.
type Record struct {
	Path    string
	Speaker int
	Text    string
}

// Parse reads records from r. In multi-speaker mode each line must have
// three fields (path, speaker id, text); otherwise two (path, text). Empty
// lines are skipped. Text may itself contain the separator: only the leading
// fields are split off.
func Parse(r io.Reader, sep string, multiSpeaker bool) ([]Record, error) {
	if sep == "" {
		sep = DefaultSeparator
	}

	want := 2
	if multiSpeaker {
		want = 3
	}

	var records []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.SplitN(line, sep, want)
		if len(fields) < want {
			return nil, fmt.Errorf("%w: line %d has %d field(s), want %d", ErrMalformedRecord, lineNo, len(fields), want)
		}

		rec := Record{Path: fields[0]}
		if multiSpeaker {
			spk, err := strconv.Atoi(strings.TrimSpace(fields[1]))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d speaker id %q is not an integer", ErrMalformedRecord, lineNo, fields[1])
			}
			rec.Speaker = spk
			rec.Text = fields[2]
		} else {
			rec.Text = fields[1]
		}

		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan manifest: %w", err)
	}

	return records, nil
}

// ParseFile opens and parses a filelist from disk.
func ParseFile(path, sep string, multiSpeaker bool) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	records, err := Parse(f, sep, multiSpeaker)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return records, nil
}
