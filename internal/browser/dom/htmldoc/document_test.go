package htmldoc_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/formbridge/internal/browser/dom"
	"github.com/xkilldash9x/formbridge/internal/browser/dom/htmldoc"
)

const formHTML = `<html><body>
<form>
  <input id="26" name="note">
  <input type="hidden" name="token" value="t0k">
  <textarea id="bio">  old text </textarea>
  <select id="country">
    <option value="vn">Viet Nam</option>
    <option selected>Japan</option>
  </select>
  <div style="display: none"><input id="ghost"></div>
  <input type="checkbox" id="agree" checked>
  <input type="radio" name="size" id="s" checked>
  <input type="radio" name="size" id="m">
  <fieldset disabled><input id="locked"></fieldset>
  <input id="ro" readonly value="fixed">
</form>
</body></html>`

func parse(t *testing.T) *htmldoc.Document {
	t.Helper()
	doc, err := htmldoc.Parse(strings.NewReader(formHTML), htmldoc.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return doc
}

func byID(t *testing.T, doc *htmldoc.Document, id string) dom.Element {
	t.Helper()
	els, err := doc.Editables(context.Background())
	require.NoError(t, err)
	for _, el := range els {
		if el.Info().ID == id {
			return el
		}
	}
	t.Fatalf("no editable with id %q", id)
	return nil
}

func TestEditables_Snapshot(t *testing.T) {
	doc := parse(t)
	els, err := doc.Editables(context.Background())
	require.NoError(t, err)
	require.Len(t, els, 10)

	for i, el := range els {
		assert.Equal(t, i, el.Info().Index, "indexes follow document order")
	}

	note := els[0].Info()
	assert.Equal(t, "26", note.ID)
	assert.Equal(t, "note", note.Name)
	assert.Equal(t, "text", note.Type)
	assert.Equal(t, dom.KindText, note.Kind())
	assert.True(t, note.Visible)

	token := els[1].Info()
	assert.False(t, token.Visible, "type=hidden is not visible")
	assert.Equal(t, "t0k", token.Value)

	bio := els[2].Info()
	assert.Equal(t, dom.KindTextArea, bio.Kind())
	assert.Equal(t, "  old text ", bio.Value)

	country := els[3].Info()
	assert.Equal(t, dom.KindSelect, country.Kind())
	require.Len(t, country.Options, 2)
	assert.Equal(t, "Japan", country.Options[1].Value, "missing value attribute falls back to text")
	assert.Equal(t, "Japan", country.Value)

	assert.False(t, els[4].Info().Visible, "ancestor display:none hides the element")
	assert.True(t, els[5].Info().Checked)
	assert.True(t, byID(t, doc, "locked").Info().Disabled, "disabled fieldset disables descendants")
	assert.True(t, byID(t, doc, "ro").Info().ReadOnly)
}

func TestEditables_CanceledContext(t *testing.T) {
	doc := parse(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := doc.Editables(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestElement_Writes(t *testing.T) {
	ctx := context.Background()

	t.Run("text input", func(t *testing.T) {
		doc := parse(t)
		require.NoError(t, byID(t, doc, "26").SetNativeValue(ctx, "note text"))
		assert.Equal(t, "note text", byID(t, doc, "26").Info().Value)
	})

	t.Run("textarea replaces content", func(t *testing.T) {
		doc := parse(t)
		require.NoError(t, byID(t, doc, "bio").SetNativeValue(ctx, "new"))
		assert.Equal(t, "new", byID(t, doc, "bio").Info().Value)
	})

	t.Run("select by position", func(t *testing.T) {
		doc := parse(t)
		el := byID(t, doc, "country")
		require.NoError(t, el.SelectOption(ctx, 0))
		assert.Equal(t, "vn", byID(t, doc, "country").Info().Value)
		assert.Error(t, el.SelectOption(ctx, 5))
		assert.Error(t, el.SetNativeValue(ctx, "x"), "select has no text value")
	})

	t.Run("radio group is exclusive", func(t *testing.T) {
		doc := parse(t)
		require.NoError(t, byID(t, doc, "m").SetChecked(ctx, true))
		assert.True(t, byID(t, doc, "m").Info().Checked)
		assert.False(t, byID(t, doc, "s").Info().Checked)
	})

	t.Run("uncheck", func(t *testing.T) {
		doc := parse(t)
		require.NoError(t, byID(t, doc, "agree").SetChecked(ctx, false))
		assert.False(t, byID(t, doc, "agree").Info().Checked)
	})
}

func TestElement_DispatchRecordsAndForwards(t *testing.T) {
	var forwarded []string
	dispatcher := func(_ context.Context, n *html.Node, eventType string) error {
		forwarded = append(forwarded, n.Data+":"+eventType)
		if eventType == "explode" {
			return errors.New("listener threw")
		}
		return nil
	}
	doc, err := htmldoc.Parse(strings.NewReader(formHTML), htmldoc.WithDispatcher(dispatcher))
	require.NoError(t, err)

	el := byID(t, doc, "26")
	require.NoError(t, el.Dispatch(context.Background(), "input"))
	require.NoError(t, el.Dispatch(context.Background(), "change"))
	assert.Error(t, el.Dispatch(context.Background(), "explode"))

	assert.Equal(t, []string{"input:input", "input:change", "input:explode"}, forwarded)
	events := doc.Events()
	require.Len(t, events, 3)
	assert.Equal(t, htmldoc.Event{Path: `//*[@id='26']`, Type: "input"}, events[0])
}

func TestRender(t *testing.T) {
	doc := parse(t)
	require.NoError(t, byID(t, doc, "26").SetNativeValue(context.Background(), "rendered"))
	out, err := doc.Render()
	require.NoError(t, err)
	assert.Contains(t, out, `value="rendered"`)
}
