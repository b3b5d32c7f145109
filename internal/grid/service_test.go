package grid_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/formbridge/api/schemas"
	"github.com/xkilldash9x/formbridge/internal/bridge"
	"github.com/xkilldash9x/formbridge/internal/browser/realm"
	"github.com/xkilldash9x/formbridge/internal/config"
	"github.com/xkilldash9x/formbridge/internal/grid"
)

func TestService_OverPageMessaging(t *testing.T) {
	page := newGridPage(t, modal(tableHTML(row("", true))), "", `
var seen = [];
window.addEventListener('message', function (e) { seen.push(e.data.type); });`)
	logger := zaptest.NewLogger(t)

	server := bridge.NewServer(page, grid.NewService(page, testGridConfig(), logger), logger)
	client := bridge.NewClient(page, config.BridgeConfig{ReplyTimeout: 5 * time.Second}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Serve(gctx) })

	rows := []map[string]string{{"amount": "1"}, {"amount": "2"}, {"amount": "3"}}
	report := client.InsertRows(ctx, bridge.RowTarget{}, rows)
	client.Close()
	cancel()
	assert.ErrorIs(t, g.Wait(), context.Canceled)

	assert.Equal(t, 3, report.Succeeded, "%+v", report.Results)
	for i, res := range report.Results {
		assert.Equal(t, i, res.RowIndex)
		assert.Equal(t, "setRowValue", res.Method)
	}
	assert.Equal(t, []string{
		`assign:0:{"amount":"1"}`,
		"create", `assign:1:{"amount":"2"}`,
		"create", `assign:2:{"amount":"3"}`,
	}, pageLog(t, page))

	// Page script observed the protocol traffic on its own window.
	require.NoError(t, page.Flush(context.Background()))
	seen, err := page.Eval(context.Background(), "seen.join(',')")
	require.NoError(t, err)
	assert.Contains(t, seen, "GRID_INSERT_REQUEST")
	assert.Contains(t, seen, "GRID_INSERT_SUCCESS")
}

func TestService_InsertButtonMissingOverBridge(t *testing.T) {
	page := newGridPage(t, modal(tableHTML(row("only", false))), "", "")
	logger := zaptest.NewLogger(t)

	server := bridge.NewServer(page, grid.NewService(page, testGridConfig(), logger), logger)
	client := bridge.NewClient(page, config.BridgeConfig{ReplyTimeout: 5 * time.Second}, logger)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	res, err := client.Insert(context.Background(), schemas.RowInsertionRequest{RowIndex: 1, Fields: map[string]string{"amount": "1"}})
	require.NoError(t, err)
	assert.False(t, res.Succeeded())
	assert.Equal(t, "Insert button not found", res.Message)
	assert.Equal(t, 1, res.RowIndex)
}

func TestProber_Cascade(t *testing.T) {
	testCases := []struct {
		name       string
		post       string
		wantMethod string
		wantErr    error
		errText    string
	}{
		{
			name:       "accessor method",
			wantMethod: "setRowValue",
		},
		{
			name: "back-reference property",
			post: `var tr = rows()[0]; delete tr.getVueInstance;
tr.__vue__ = { updateRow: function (d) { log.push('updateRow:' + d.amount); } };`,
			wantMethod: "__vue__.updateRow",
		},
		{
			name: "alternative method on accessor instance",
			post: `rows()[0].getVueInstance = function () { return { addRow: function (d) { log.push('addRow'); } }; };`,
			wantMethod: "addRow",
		},
		{
			name:    "no instance",
			post:    `delete rows()[0].getVueInstance;`,
			wantErr: grid.ErrNoInstance,
		},
		{
			name:    "accessor returns null",
			post:    `rows()[0].getVueInstance = function () { return null; };`,
			wantErr: grid.ErrNoInstance,
		},
		{
			name:    "instance without known methods",
			post:    `rows()[0].getVueInstance = function () { return { render: function () {} }; };`,
			wantErr: grid.ErrNoMethod,
		},
		{
			name:    "method throws",
			post:    `rows()[0].getVueInstance = function () { return { setRowValue: function () { throw new Error('row is locked'); } }; };`,
			errText: "setRowValue failed: javascript exception: row is locked",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page := newGridPage(t, modal(tableHTML(row("", true))), "", tc.post)
			ctx := context.Background()
			doc, err := realm.Document(ctx, page)
			require.NoError(t, err)
			tr, ok, err := realm.Query(ctx, doc, "tr.ms-tr")
			require.NoError(t, err)
			require.True(t, ok)

			method, err := grid.NewProber(testGridConfig(), zaptest.NewLogger(t)).Assign(ctx, tr, map[string]string{"amount": "3"})
			switch {
			case tc.wantErr != nil:
				assert.ErrorIs(t, err, tc.wantErr)
			case tc.errText != "":
				assert.EqualError(t, err, tc.errText)
			default:
				require.NoError(t, err)
				assert.Equal(t, tc.wantMethod, method)
			}
		})
	}
}

func TestProber_StrategiesAreConfigurable(t *testing.T) {
	page := newGridPage(t, modal(tableHTML(row("", true))), "", `
rows()[0].__vueParentComponent = { ctx: 1, patchRow: function (d) { log.push('patch:' + d.amount); } };`)
	cfg := testGridConfig()
	cfg.Accessors = []config.AccessorConfig{{Kind: config.AccessorProperty, Name: "__vueParentComponent"}}
	cfg.Methods = []string{"patchRow"}

	res := run(t, page, cfg, schemas.RowInsertionRequest{Fields: map[string]string{"amount": "8"}})
	require.True(t, res.Succeeded(), res.Message)
	assert.Equal(t, "patchRow", res.Method)
	assert.Equal(t, []string{"patch:8"}, pageLog(t, page))
}

func TestService_Diagnose(t *testing.T) {
	body := modal(tableHTML(row("", true), row("", true)))
	page := newGridPage(t, body, "", `
var second = rows()[1]; delete second.getVueInstance; second.__vue__ = {};`)

	diags, err := grid.NewService(page, testGridConfig(), zaptest.NewLogger(t)).Diagnose(context.Background())
	require.NoError(t, err)
	require.Len(t, diags, 2)

	assert.Equal(t, "ms-tr custom-class", diags[0].ClassName)
	assert.Equal(t, map[string]bool{"getVueInstance()": true, "__vue__": false}, diags[0].Accessors)
	assert.Equal(t, map[string]bool{"getVueInstance()": false, "__vue__": true}, diags[1].Accessors)
	assert.Equal(t, 1, diags[1].Index)
}

func TestLocatorError(t *testing.T) {
	err := &grid.LocatorError{State: grid.StateCreatingRow, Message: "Insert button not found"}
	assert.ErrorIs(t, err, grid.ErrLocator)
	assert.Equal(t, "Insert button not found", err.Error())
	assert.Equal(t, "CreatingRow", err.State.String())
}

func TestSummary(t *testing.T) {
	testCases := []struct {
		report   schemas.RowBatchReport
		message  string
		severity schemas.Severity
	}{
		{schemas.RowBatchReport{Succeeded: 3}, "Inserted 3 rows into the grid.", schemas.SeveritySuccess},
		{schemas.RowBatchReport{Succeeded: 2, Failed: 1}, "Inserted 2/3 rows. 1 failed.", schemas.SeverityInfo},
		{schemas.RowBatchReport{Failed: 2}, "No rows were inserted (2 failed).", schemas.SeverityError},
		{schemas.RowBatchReport{}, "No rows were inserted (0 failed).", schemas.SeverityError},
	}
	for _, tc := range testCases {
		message, severity := grid.Summary(tc.report)
		assert.Equal(t, tc.message, message)
		assert.Equal(t, tc.severity, severity)
	}
}
