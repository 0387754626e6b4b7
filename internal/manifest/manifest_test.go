package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse_singleSpeaker(t *testing.T) {
	input := "wavs/a.wav|Hello there.\n\nwavs/b.wav|Second line.\n"

	records, err := Parse(strings.NewReader(input), "|", false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Path != "wavs/a.wav" || records[0].Text != "Hello there." {
		t.Errorf("record 0 = %+v", records[0])
	}
	if records[1].Path != "wavs/b.wav" {
		t.Errorf("record 1 path = %q", records[1].Path)
	}
}

func TestParse_multiSpeaker(t *testing.T) {
	input := "wavs/a.wav|3|Hello.\nwavs/b.wav|14|Bye.\n"

	records, err := Parse(strings.NewReader(input), "|", true)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Speaker != 3 || records[1].Speaker != 14 {
		t.Errorf("speakers = %d, %d; want 3, 14", records[0].Speaker, records[1].Speaker)
	}
}

func TestParse_malformed(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		multiSpeaker bool
	}{
		{"missing text field", "wavs/a.wav\n", false},
		{"missing speaker field", "wavs/a.wav|Hello.\n", true},
		{"non-integer speaker", "wavs/a.wav|abc|Hello.\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input), "|", tt.multiSpeaker)
			if !errors.Is(err, ErrMalformedRecord) {
				t.Fatalf("error = %v, want ErrMalformedRecord", err)
			}
		})
	}
}

func TestParse_textMayContainSeparator(t *testing.T) {
	records, err := Parse(strings.NewReader("wavs/a.wav|Hello | world.\n"), "|", false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if records[0].Text != "Hello | world." {
		t.Errorf("text = %q, want separator preserved in text", records[0].Text)
	}
}

func TestParse_customSeparator(t *testing.T) {
	records, err := Parse(strings.NewReader("wavs/a.wav\tHi.\n"), "\t", false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(records) != 1 || records[0].Text != "Hi." {
		t.Errorf("records = %+v", records)
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "train.txt")
	if err := os.WriteFile(path, []byte("wavs/a.wav|Hi.\nwavs/b.wav|Yo.\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	records, err := ParseFile(path, "|", false)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}
}

func TestParseFile_missing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "nope.txt"), "|", false)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want wrapped os.ErrNotExist", err)
	}
}
