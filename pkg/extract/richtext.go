package extract

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// RichText cleans the HTML fields Azure DevOps stores for descriptions and
// comments. It is safe for concurrent use.
type RichText struct {
	policy      *bluemonday.Policy
	mdConverter *converter.Converter
}

// NewRichText creates a RichText with the user-generated-content policy.
func NewRichText() *RichText {
	return &RichText{
		policy: bluemonday.UGCPolicy(),
		mdConverter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Sanitize strips scripts, handlers and unknown markup from html.
func (r *RichText) Sanitize(html string) string {
	if html == "" {
		return ""
	}
	return r.policy.Sanitize(html)
}

// Markdown renders already sanitized html as Markdown. When conversion
// fails the sanitized html is returned as is.
func (r *RichText) Markdown(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	md, err := r.mdConverter.ConvertString(html)
	if err != nil {
		return html
	}
	return strings.TrimSpace(md)
}
