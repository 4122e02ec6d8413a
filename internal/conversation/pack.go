package conversation

import (
	"unicode/utf8"

	"github.com/cloud-shuttle/quill/pkg/types"
)

// DefaultHistoryChars is the default replay budget in characters
const DefaultHistoryChars = 140000

// Pack returns the most recent turns whose combined content length stays
// within maxChars, in chronological order. The budget is checked after a
// turn is taken, so the turn that crosses it is still included and the
// newest turn is always returned whole.
func Pack(turns []types.Turn, maxChars int) []types.Turn {
	if len(turns) == 0 {
		return nil
	}

	var packed []types.Turn
	total := 0
	for i := len(turns) - 1; i >= 0; i-- {
		total += utf8.RuneCountInString(turns[i].Content)
		packed = append(packed, turns[i])
		if total > maxChars {
			break
		}
	}

	// Reverse to get chronological order
	for i, j := 0, len(packed)-1; i < j; i, j = i+1, j-1 {
		packed[i], packed[j] = packed[j], packed[i]
	}
	return packed
}
