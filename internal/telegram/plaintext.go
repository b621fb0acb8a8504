package telegram

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	markdownMarks = strings.NewReplacer("```", "", "`", "", "*", "")
	htmlTag       = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9]*(\s[^>]*)?/?>`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
)

// PlainText renders a model reply without formatting, for when Telegram
// rejects its markdown. Stray HTML the model emits is reduced to its text.
func PlainText(text string) string {
	if htmlTag.MatchString(text) {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
		if err == nil {
			doc.Find("br").ReplaceWithHtml("\n")
			doc.Find("p, div, li").Each(func(_ int, sel *goquery.Selection) {
				sel.AppendHtml("\n")
			})
			text = doc.Text()
		}
	}
	text = markdownMarks.Replace(text)
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
