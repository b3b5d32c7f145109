package grid_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/formbridge/api/schemas"
	"github.com/xkilldash9x/formbridge/internal/browser/jsbind"
	"github.com/xkilldash9x/formbridge/internal/config"
	"github.com/xkilldash9x/formbridge/internal/grid"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// gridScript mimics a grid component library: every row carries a
// getVueInstance accessor and a row-level insert control that appends a
// fresh row on the next tick.
const gridScript = `
var log = [];
var opts = window.fixture || {};
function rows() { return document.querySelectorAll('tr.ms-tr.custom-class'); }
function rowPos(tr) {
  var all = rows();
  for (var i = 0; i < all.length; i++) { if (all[i] === tr) return i; }
  return -1;
}
function attach(tr) {
  if (opts.noAccessor) return;
  tr.getVueInstance = function () {
    return {
      setRowValue: function (data) {
        log.push('assign:' + rowPos(tr) + ':' + JSON.stringify(data));
        var input = tr.querySelector('input');
        if (input) input.value = data.amount || 'filled';
      }
    };
  };
}
function wireInsert(tr) {
  var btn = tr.querySelector('.row-editor-action.insert');
  if (!btn) return;
  btn.addEventListener('click', function () {
    log.push('create');
    if (opts.inertInsert) return;
    setTimeout(function () {
      var clone = tr.cloneNode(true);
      var input = clone.querySelector('input');
      if (input) input.value = '';
      tr.parentNode.appendChild(clone);
      attach(clone);
      wireInsert(clone);
    }, 0);
  });
}
var existing = rows();
for (var i = 0; i < existing.length; i++) { attach(existing[i]); wireInsert(existing[i]); }
`

func row(value string, insert bool) string {
	control := ""
	if insert {
		control = `<span class="row-editor-action insert"></span>`
	}
	return fmt.Sprintf(`<tr class="ms-tr custom-class"><td><input value="%s"></td><td>%s</td></tr>`, value, control)
}

func tableHTML(rows ...string) string {
	return `<table class="ms-table"><tbody>` + strings.Join(rows, "") + `</tbody></table>`
}

func modal(body string) string {
	return `<div class="vfm__content modal-content">` + body + `</div>`
}

// newGridPage builds a page from body. pre runs before the grid script,
// post after it.
func newGridPage(t *testing.T, body, pre, post string) *jsbind.Page {
	t.Helper()
	src := fmt.Sprintf("<html><body>%s<script>%s</script><script>%s</script><script>%s</script></body></html>",
		body, pre, gridScript, post)
	page, err := jsbind.NewPage(strings.NewReader(src), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(page.Close)
	return page
}

func testGridConfig() config.GridConfig {
	cfg := config.NewDefaultConfig().Grid()
	cfg.MaxAttempts = 3
	cfg.RetryDelay = 5 * time.Millisecond
	cfg.SettleDelay = 20 * time.Millisecond
	return cfg
}

func pageLog(t *testing.T, page *jsbind.Page) []string {
	t.Helper()
	raw, err := page.Eval(context.Background(), "JSON.stringify(log)")
	require.NoError(t, err)
	var out []string
	require.NoError(t, json.Unmarshal([]byte(raw.(string)), &out))
	return out
}

func run(t *testing.T, page *jsbind.Page, cfg config.GridConfig, req schemas.RowInsertionRequest) schemas.RowInsertionResult {
	t.Helper()
	return grid.NewController(page, cfg, zaptest.NewLogger(t)).Run(context.Background(), req)
}

func TestController_RowZeroNeverCreates(t *testing.T) {
	page := newGridPage(t, modal(tableHTML(row("6422", true), row("", true), row("", true))), "", "")

	res := run(t, page, testGridConfig(), schemas.RowInsertionRequest{
		CorrelationID: 11,
		RowIndex:      0,
		Fields:        map[string]string{"amount": "2220450"},
	})
	require.True(t, res.Succeeded(), res.Message)
	assert.Equal(t, "setRowValue", res.Method)
	assert.Equal(t, int64(11), res.CorrelationID)
	// The first matching row is chosen even when it already holds data, and
	// no creation happens.
	assert.Equal(t, []string{`assign:0:{"amount":"2220450"}`}, pageLog(t, page))
}

func TestController_RowZeroUsesFirstMatchingRow(t *testing.T) {
	page := newGridPage(t, modal(tableHTML(row("a", true), row("b", true), row("c", true))), "", "")

	res := run(t, page, testGridConfig(), schemas.RowInsertionRequest{RowIndex: 0, Fields: map[string]string{"amount": "1"}})
	require.True(t, res.Succeeded(), res.Message)
	assert.Equal(t, []string{`assign:0:{"amount":"1"}`}, pageLog(t, page))
}

// plainRowsScript gives rows that only match the fallback selector their own
// component, logging under their position among those rows.
const plainRowsScript = `
var plain = document.querySelectorAll('tr.ms-tr');
for (var i = 0; i < plain.length; i++) {
  (function (tr, pos) {
    tr.getVueInstance = function () {
      return { setRowValue: function (data) { log.push('plain:' + pos + ':' + JSON.stringify(data)); } };
    };
  })(plain[i], i);
}`

func plainRow(value string) string {
	return fmt.Sprintf(`<tr class="ms-tr"><td><input value="%s"></td></tr>`, value)
}

func TestController_RowZeroFallbackWhenSelectorMisses(t *testing.T) {
	testCases := []struct {
		name string
		rows []string
		want string
	}{
		{"FirstEmptyRow", []string{plainRow("a"), plainRow(""), plainRow("")}, `plain:1:{"amount":"1"}`},
		{"LastRowWhenAllFilled", []string{plainRow("a"), plainRow("b")}, `plain:1:{"amount":"1"}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page := newGridPage(t, modal(tableHTML(tc.rows...)), "", plainRowsScript)

			res := run(t, page, testGridConfig(), schemas.RowInsertionRequest{RowIndex: 0, Fields: map[string]string{"amount": "1"}})
			require.True(t, res.Succeeded(), res.Message)
			assert.Equal(t, []string{tc.want}, pageLog(t, page))
		})
	}
}

func TestController_RowZeroExplicitSelector(t *testing.T) {
	body := modal(tableHTML(row("", true), `<tr class="ms-tr custom-class target"><td><input value="x"></td></tr>`))
	page := newGridPage(t, body, "", "")

	res := run(t, page, testGridConfig(), schemas.RowInsertionRequest{
		RowIndex: 0,
		Selector: "tr.target",
		Fields:   map[string]string{"amount": "5"},
	})
	require.True(t, res.Succeeded(), res.Message)
	assert.Equal(t, []string{`assign:1:{"amount":"5"}`}, pageLog(t, page))
}

func TestController_PositiveRowCreatesExactlyOnce(t *testing.T) {
	page := newGridPage(t, modal(tableHTML(row("first", true))), "", "")

	res := run(t, page, testGridConfig(), schemas.RowInsertionRequest{
		CorrelationID: 3,
		RowIndex:      2,
		Fields:        map[string]string{"amount": "42"},
	})
	require.True(t, res.Succeeded(), res.Message)
	assert.Equal(t, 2, res.RowIndex)
	// One creation, then the assignment lands on the new last row.
	assert.Equal(t, []string{"create", `assign:1:{"amount":"42"}`}, pageLog(t, page))
}

func TestController_SequentialRowsAppend(t *testing.T) {
	page := newGridPage(t, modal(tableHTML(row("", true))), "", "")
	ctrl := grid.NewController(page, testGridConfig(), zaptest.NewLogger(t))

	for i := 0; i < 3; i++ {
		res := ctrl.Run(context.Background(), schemas.RowInsertionRequest{RowIndex: i, Fields: map[string]string{"amount": fmt.Sprint(i + 1)}})
		require.True(t, res.Succeeded(), res.Message)
	}
	assert.Equal(t, []string{
		`assign:0:{"amount":"1"}`,
		"create", `assign:1:{"amount":"2"}`,
		"create", `assign:2:{"amount":"3"}`,
	}, pageLog(t, page))
}

func TestController_Failures(t *testing.T) {
	testCases := []struct {
		name    string
		body    string
		pre     string
		req     schemas.RowInsertionRequest
		message string
	}{
		{
			name:    "no modal",
			body:    tableHTML(row("", true)),
			message: "Modal not found",
		},
		{
			name:    "no table",
			body:    modal(`<p>loading</p>`),
			message: "Table not found",
		},
		{
			name:    "grid index out of range",
			body:    modal(tableHTML(row("", true))),
			req:     schemas.RowInsertionRequest{GridIndex: 3},
			message: "Invalid grid index 3, only 1 grids available",
		},
		{
			name:    "insert control missing",
			body:    modal(tableHTML(row("only", false))),
			req:     schemas.RowInsertionRequest{RowIndex: 1, Fields: map[string]string{"amount": "1"}},
			message: "Insert button not found",
		},
		{
			name:    "no rows to insert after",
			body:    modal(tableHTML()),
			req:     schemas.RowInsertionRequest{RowIndex: 1},
			message: "No target row found for insertion",
		},
		{
			name:    "empty grid without add button",
			body:    modal(tableHTML()),
			message: "No rows found and no add button available",
		},
		{
			name:    "insert does nothing",
			body:    modal(tableHTML(row("a", true))),
			pre:     `window.fixture = {inertInsert: true};`,
			req:     schemas.RowInsertionRequest{RowIndex: 1},
			message: "No new row created after clicking insert",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page := newGridPage(t, tc.body, tc.pre, "")
			tc.req.CorrelationID = 99

			res := run(t, page, testGridConfig(), tc.req)
			assert.False(t, res.Succeeded())
			assert.Equal(t, tc.message, res.Message)
			assert.Equal(t, int64(99), res.CorrelationID)
			assert.Equal(t, tc.req.RowIndex, res.RowIndex)
		})
	}
}

func TestController_RetriesRerunCreation(t *testing.T) {
	page := newGridPage(t, modal(tableHTML(row("a", true))), `window.fixture = {inertInsert: true};`, "")
	cfg := testGridConfig()

	res := run(t, page, cfg, schemas.RowInsertionRequest{RowIndex: 1})
	require.False(t, res.Succeeded())
	// Every attempt starts over and clicks once.
	assert.Len(t, pageLog(t, page), cfg.MaxAttempts)
}

func TestController_RecoversWhenPageSettles(t *testing.T) {
	// The grid renders a little after load, like a modal opening.
	post := `
setTimeout(function () {
  var div = document.createElement('div');
  div.className = 'vfm__content modal-content';
  div.innerHTML = '<table class="ms-table"><tbody><tr class="ms-tr custom-class"><td><input></td></tr></tbody></table>';
  document.body.appendChild(div);
  attach(rows()[0]);
}, 10);`
	page := newGridPage(t, "", "", post)
	cfg := testGridConfig()
	cfg.MaxAttempts = 20

	res := run(t, page, cfg, schemas.RowInsertionRequest{RowIndex: 0, Fields: map[string]string{"amount": "7"}})
	require.True(t, res.Succeeded(), res.Message)
	assert.Equal(t, []string{`assign:0:{"amount":"7"}`}, pageLog(t, page))
}

func TestController_AddButtonCreatesFirstRow(t *testing.T) {
	body := modal(`<table class="ms-table"><tbody id="rows"></tbody><tfoot><tr><td><button title="Add row" id="add"></button></td></tr></tfoot></table>`)
	post := `
document.getElementById('add').addEventListener('click', function () {
  log.push('add');
  setTimeout(function () {
    var tr = document.createElement('tr');
    tr.className = 'ms-tr custom-class';
    tr.innerHTML = '<td><input></td>';
    document.getElementById('rows').appendChild(tr);
    attach(tr);
  }, 0);
});`
	page := newGridPage(t, body, "", post)

	res := run(t, page, testGridConfig(), schemas.RowInsertionRequest{RowIndex: 0, Fields: map[string]string{"amount": "9"}})
	require.True(t, res.Succeeded(), res.Message)
	assert.Equal(t, []string{"add", `assign:0:{"amount":"9"}`}, pageLog(t, page))
}

func TestController_CancelledContext(t *testing.T) {
	page := newGridPage(t, modal(tableHTML(row("a", false))), "", "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := grid.NewController(page, testGridConfig(), zaptest.NewLogger(t)).Run(ctx, schemas.RowInsertionRequest{RowIndex: 1, CorrelationID: 5})
	assert.False(t, res.Succeeded())
	assert.Contains(t, res.Message, "context canceled")
	assert.Equal(t, int64(5), res.CorrelationID)
}
