package application

import "github.com/microcosm-cc/bluemonday"

// commentPolicy mirrors the tag whitelist the comment service enforces on
// write: a (href, title), code, i, strong. Sanitizing before submission keeps
// local echoes and server responses rendering identically.
func commentPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowElements("code", "i", "strong")
	return p
}

var sanitizer = commentPolicy()

// SanitizeCommentText strips disallowed HTML from user-entered comment text.
func SanitizeCommentText(text string) string {
	return sanitizer.Sanitize(text)
}
