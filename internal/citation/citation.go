// Package citation renders human-readable citations for retrieved chunks.
// All functions are pure: every component besides the document title is
// optional and formatting never fails.
package citation

import (
	"fmt"
	"strings"
)

// Format builds a citation string from chunk metadata. Components are
// appended in a fixed order, each only when present:
//
//	<title>, Clause <clause> (<section>), p.<n>          single page
//	<title>, Clause <clause> (<section>), pp.<min>-<max>  page range
//
// The section title rides with the clause number, never with the pages.
// With no optional fields the citation is exactly the document title.
func Format(documentTitle, clauseNumber, sectionTitle string, pageNumbers []int) string {
	var b strings.Builder
	b.WriteString(documentTitle)

	if clauseNumber != "" {
		fmt.Fprintf(&b, ", Clause %s", clauseNumber)
		if sectionTitle != "" {
			fmt.Fprintf(&b, " (%s)", sectionTitle)
		}
	}

	switch {
	case len(pageNumbers) == 1:
		fmt.Fprintf(&b, ", p.%d", pageNumbers[0])
	case len(pageNumbers) > 1:
		// Page lists arrive ascending from ingestion; first and last bound the range.
		fmt.Fprintf(&b, ", pp.%d-%d", pageNumbers[0], pageNumbers[len(pageNumbers)-1])
	}

	return b.String()
}

// FormatWithRelevance appends the relevance score as a whole percentage.
// score is expected in [0,1]; callers with no score should use Format.
func FormatWithRelevance(documentTitle, clauseNumber, sectionTitle string, pageNumbers []int, score float64) string {
	return fmt.Sprintf("%s (%.0f%% relevant)",
		Format(documentTitle, clauseNumber, sectionTitle, pageNumbers), score*100)
}
