package runner

import (
	"regexp"
	"strings"

	"github.com/Nephrolytics-ai/sheetscribe/pkg/model"
)

const linkMarker = "HYPERLINK"

var assetIDPattern = regexp.MustCompile(`d/([a-zA-Z0-9_-]+)/`)

// isPending reports whether a source reference still needs a transcript. The
// target must be exactly empty; whitespace counts as content.
func isPending(reference, targetDisplay string) bool {
	if targetDisplay != "" {
		return false
	}
	return strings.Contains(strings.ToUpper(reference), linkMarker)
}

// extractAssetID pulls the Drive style file id out of a link formula such as
// =HYPERLINK("https://drive.google.com/file/d/<id>/view","Audio").
func extractAssetID(reference string) (string, error) {
	match := assetIDPattern.FindStringSubmatch(reference)
	if match == nil {
		return "", model.ErrAssetIDNotFound
	}
	return match[1], nil
}

// displayValue returns the snapshot value at a 1-based row and column, or ""
// when the row or cell was trimmed from the snapshot.
func displayValue(snapshot [][]string, row, col int) string {
	if row < 1 || row > len(snapshot) {
		return ""
	}
	cells := snapshot[row-1]
	if col < 1 || col > len(cells) {
		return ""
	}
	return cells[col-1]
}
