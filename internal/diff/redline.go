package diff

import "github.com/sergi/go-diff/diffmatchpatch"

// Redline renders an HTML view of the edits from oldText to newText with <ins>/<del> marks,
// cleaned up to word-ish boundaries so reviewers read whole phrases.
func Redline(oldText, newText string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldText, newText, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.DiffPrettyHtml(diffs)
}
