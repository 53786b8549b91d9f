// Package diff describes how one draft revision differs from the previous one.
//
// Texts are compared rune by rune with Ratcliff/Obershelp block matching. Only the
// non-equal opcodes are reported; positions are rune offsets into the old text.
package diff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

type Op string

const (
	OpReplace Op = "replace"
	OpDelete  Op = "delete"
	OpInsert  Op = "insert"
)

// Change replaces old[Start:End] with NewText. OldText is the removed span.
type Change struct {
	Op      Op     `json:"op"`
	OldText string `json:"oldText"`
	NewText string `json:"newText"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
}

type ChangeSet []Change

// Compute returns the change set turning oldText into newText, ordered by Start.
// Adjacent opcodes are reported as the matcher produced them and never merged.
func Compute(oldText, newText string) ChangeSet {
	a := runeTokens(oldText)
	b := runeTokens(newText)

	matcher := difflib.NewMatcherWithJunk(a, b, false, nil)
	changes := ChangeSet{}
	for _, code := range matcher.GetOpCodes() {
		var op Op
		switch code.Tag {
		case 'r':
			op = OpReplace
		case 'd':
			op = OpDelete
		case 'i':
			op = OpInsert
		default:
			continue
		}
		changes = append(changes, Change{
			Op:      op,
			OldText: strings.Join(a[code.I1:code.I2], ""),
			NewText: strings.Join(b[code.J1:code.J2], ""),
			Start:   code.I1,
			End:     code.I2,
		})
	}
	return changes
}

// Apply replays changes against oldText. It fails when spans overlap, run backwards,
// fall outside oldText or disagree with the text they claim to remove.
func Apply(oldText string, changes ChangeSet) (string, error) {
	old := []rune(oldText)
	var out strings.Builder
	out.Grow(len(oldText))

	pos := 0
	for i, change := range changes {
		if change.Start < pos || change.End < change.Start || change.End > len(old) {
			return "", fmt.Errorf("change %d: span [%d,%d) invalid at offset %d of %d", i, change.Start, change.End, pos, len(old))
		}
		if string(old[change.Start:change.End]) != change.OldText {
			return "", fmt.Errorf("change %d: old text mismatch at [%d,%d)", i, change.Start, change.End)
		}
		out.WriteString(string(old[pos:change.Start]))
		out.WriteString(change.NewText)
		pos = change.End
	}
	out.WriteString(string(old[pos:]))
	return out.String(), nil
}

// Stats counts the runes removed from and added to the old text.
func (c ChangeSet) Stats() (removed, added int) {
	for _, change := range c {
		removed += len([]rune(change.OldText))
		added += len([]rune(change.NewText))
	}
	return removed, added
}

func runeTokens(text string) []string {
	tokens := make([]string, 0, len(text))
	for _, r := range text {
		tokens = append(tokens, string(r))
	}
	return tokens
}
