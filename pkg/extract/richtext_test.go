package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRichTextSanitize(t *testing.T) {
	rt := NewRichText()

	got := rt.Sanitize(`<div onclick="steal()">Hi <a href="javascript:x()">there</a><script>alert(1)</script></div>`)
	assert.NotContains(t, got, "onclick")
	assert.NotContains(t, got, "script")
	assert.NotContains(t, got, "javascript:")
	assert.Contains(t, got, "Hi")
	assert.Empty(t, rt.Sanitize(""))
}

func TestRichTextMarkdown(t *testing.T) {
	rt := NewRichText()

	tests := []struct {
		name string
		html string
		want string
	}{
		{"bold", "<p>very <strong>important</strong></p>", "very **important**"},
		{"heading", "<h2>Steps</h2>", "## Steps"},
		{"link", `<a href="https://example.com">docs</a>`, "[docs](https://example.com)"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rt.Markdown(tt.html))
		})
	}
}
