package commands

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/ddunnock/sekb-go/internal/search"
)

func TestPrintResults_TruncatesOnRuneBoundaries(t *testing.T) {
	t.Parallel()

	// Content made entirely of multibyte runes, longer than the excerpt cap.
	// A byte-indexed slice would cut one of them in half.
	content := strings.Repeat("±", printExcerptRunes+50)
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	printResults(cmd, []search.Result{{
		ChunkID:       "c1",
		Content:       content,
		Score:         0.9,
		DocumentTitle: "ECSS-E-ST-10C",
	}})

	out := buf.String()
	if !utf8.ValidString(out) {
		t.Error("output contains a split multibyte sequence")
	}
	if !strings.Contains(out, "...") {
		t.Error("long content must be truncated with an ellipsis")
	}
	if got := strings.Count(out, "±"); got != printExcerptRunes {
		t.Errorf("want %d runes of content, got %d", printExcerptRunes, got)
	}
}

func TestPrintResults_ShortContentUntouched(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	printResults(cmd, []search.Result{{
		ChunkID:       "c1",
		Content:       "The supplier shall verify the system.",
		Score:         0.87,
		DocumentTitle: "ISO/IEC/IEEE 12207:2017",
		ClauseNumber:  "6.4.9",
	}})

	out := buf.String()
	if strings.Contains(out, "...") {
		t.Error("short content must not be truncated")
	}
	if !strings.Contains(out, "The supplier shall verify the system.") {
		t.Errorf("content missing from output: %q", out)
	}
}

func TestParseFilters(t *testing.T) {
	t.Parallel()

	f := parseFilters([]string{
		"document_type=standard",
		"document_id=iso12207",
		"document_id=iso15288",
		"malformed",
	})

	if got := f["document_type"]; got != "standard" {
		t.Errorf("single value must stay scalar, got %v", got)
	}
	ids, ok := f["document_id"].([]string)
	if !ok || len(ids) != 2 || ids[0] != "iso12207" || ids[1] != "iso15288" {
		t.Errorf("repeated field must collapse to any-of, got %v", f["document_id"])
	}
	if _, present := f["malformed"]; present {
		t.Error("entries without '=' must be skipped")
	}
}
