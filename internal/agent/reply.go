package agent

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var replyPolicy = bluemonday.StrictPolicy()

// cleanReply strips markup from the model's reply before it is shown to the
// user. It runs on the tagged text, so restored values are never touched.
// StrictPolicy escapes what it keeps; replies travel as JSON, not HTML, so
// entities are decoded again.
func cleanReply(reply string) string {
	return strings.TrimSpace(html.UnescapeString(replyPolicy.Sanitize(reply)))
}
