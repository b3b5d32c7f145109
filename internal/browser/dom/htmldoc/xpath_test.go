package htmldoc_test

import (
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/formbridge/internal/browser/dom/htmldoc"
)

const pathHTML = `
	<html>
	<body>
		<form id="profile">
			<input name="first">
			<input name="last">
		</form>
		<div class="grid">
			<table><tr><td><input></td><td><input></td></tr></table>
		</div>
		<div class="grid"><textarea></textarea></div>
		<input id="it's-quoted">
	</body>
	</html>
	`

func TestNodePath(t *testing.T) {
	doc, err := htmlquery.Parse(strings.NewReader(pathHTML))
	require.NoError(t, err)

	tests := []struct {
		name     string
		target   string
		expected string
	}{
		{"Body", "//body", "/html[1]/body[1]"},
		{"Anchored on form id", "//input[@name='last']", `//*[@id='profile']/input[2]`},
		{"Nested table cell", "(//td)[2]/input", "/html[1]/body[1]/div[1]/table[1]/tbody[1]/tr[1]/td[2]/input[1]"},
		{"Second grid", "//textarea", "/html[1]/body[1]/div[2]/textarea[1]"},
		{"Quoted id is not used as anchor", "//body/input", "/html[1]/body[1]/input[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := htmlquery.FindOne(doc, tt.target)
			require.NotNil(t, target, "fixture lookup failed for %s", tt.target)

			path := htmldoc.NodePath(target)
			assert.Equal(t, tt.expected, path)
			assert.Same(t, target, htmlquery.FindOne(doc, path), "path must select the original node")
		})
	}

	assert.Equal(t, "", htmldoc.NodePath(nil))
}
