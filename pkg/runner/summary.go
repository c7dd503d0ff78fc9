package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/sheetscribe/pkg/model"
)

const SummarySubject = "Transcription Process Summary"

// FormatSummary renders the plain text body of the run summary.
func FormatSummary(stats *model.RunStats) string {
	var b strings.Builder
	b.WriteString("Transcription Process Summary:\n\n")
	fmt.Fprintf(&b, "Total files processed: %d\n", stats.TotalProcessed)
	fmt.Fprintf(&b, "Successfully transcribed: %d\n", stats.Successful)
	fmt.Fprintf(&b, "Failed transcriptions: %d\n\n", stats.Failed)

	b.WriteString("Errors encountered:\n")
	if len(stats.Errors) == 0 {
		b.WriteString("None\n")
	}
	for _, msg := range stats.Errors {
		fmt.Fprintf(&b, "- %s\n", msg)
	}

	fmt.Fprintf(&b, "\nLast processed row: %d\n", stats.LastRow)
	if stats.Fatal {
		b.WriteString("Run aborted before any row was processed.\n")
	}
	fmt.Fprintf(&b, "Run id: %s\n", stats.RunID)
	fmt.Fprintf(&b, "Duration: %s\n", stats.Duration().Round(time.Millisecond))
	return b.String()
}
