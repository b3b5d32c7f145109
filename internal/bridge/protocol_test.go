package bridge_test

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/formbridge/api/schemas"
	"github.com/xkilldash9x/formbridge/internal/bridge"
)

func TestEncodeRequest_WireShape(t *testing.T) {
	raw, err := bridge.EncodeRequest(schemas.RowInsertionRequest{
		CorrelationID: 7,
		RowIndex:      0,
		Fields:        map[string]string{"accountCode": "6422"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"GRID_INSERT_REQUEST","correlationId":7,"rowIndex":0,"fields":{"accountCode":"6422"}}`, string(raw))
}

func TestEncodeResult_SelectsType(t *testing.T) {
	req := schemas.RowInsertionRequest{CorrelationID: 3, RowIndex: 2}

	ok, err := bridge.EncodeResult(schemas.NewRowSuccess(req, "setRowValue"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"GRID_INSERT_SUCCESS","correlationId":3,"rowIndex":2,"method":"setRowValue"}`, string(ok))

	bad, err := bridge.EncodeResult(schemas.NewRowFailure(req, "Table not found"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"GRID_INSERT_ERROR","correlationId":3,"rowIndex":2,"message":"Table not found"}`, string(bad))
}

func TestDecode(t *testing.T) {
	testCases := []struct {
		name    string
		raw     string
		want    bridge.Message
		wantErr error
	}{
		{
			name: "request",
			raw:  `{"type":"GRID_INSERT_REQUEST","correlationId":1,"rowIndex":1,"gridIndex":2,"fields":{"a":"b"}}`,
			want: bridge.Message{Type: bridge.TypeInsertRequest, Request: &schemas.RowInsertionRequest{
				CorrelationID: 1, RowIndex: 1, GridIndex: 2, Fields: map[string]string{"a": "b"},
			}},
		},
		{
			name: "legacy data field",
			raw:  `{"type":"GRID_INSERT_REQUEST","correlationId":1,"rowIndex":0,"data":{"a":"b"}}`,
			want: bridge.Message{Type: bridge.TypeInsertRequest, Request: &schemas.RowInsertionRequest{
				CorrelationID: 1, Fields: map[string]string{"a": "b"},
			}},
		},
		{
			name: "request without fields",
			raw:  `{"type":"GRID_INSERT_REQUEST","correlationId":4,"rowIndex":0}`,
			want: bridge.Message{Type: bridge.TypeInsertRequest, Request: &schemas.RowInsertionRequest{
				CorrelationID: 4, Fields: map[string]string{},
			}},
		},
		{
			name: "success",
			raw:  `{"type":"GRID_INSERT_SUCCESS","correlationId":9,"rowIndex":3,"method":"updateRow"}`,
			want: bridge.Message{Type: bridge.TypeInsertSuccess, Result: &schemas.RowInsertionResult{
				CorrelationID: 9, RowIndex: 3, Status: schemas.RowSuccess, Method: "updateRow",
			}},
		},
		{
			name: "error",
			raw:  `{"type":"GRID_INSERT_ERROR","correlationId":9,"rowIndex":0,"message":"Modal not found"}`,
			want: bridge.Message{Type: bridge.TypeInsertError, Result: &schemas.RowInsertionResult{
				CorrelationID: 9, Status: schemas.RowFailure, Message: "Modal not found",
			}},
		},
		{name: "page traffic", raw: `{"type":"webpackOk"}`, wantErr: bridge.ErrUnknownType},
		{name: "no type", raw: `{"correlationId":1}`, wantErr: bridge.ErrUnknownType},
		{name: "not json", raw: `hello`, wantErr: bridge.ErrMalformedMessage},
		{name: "json string", raw: `"GRID_INSERT_REQUEST"`, wantErr: bridge.ErrUnknownType},
		{name: "missing correlation", raw: `{"type":"GRID_INSERT_SUCCESS","rowIndex":0}`, wantErr: bridge.ErrMalformedMessage},
		{name: "missing row index", raw: `{"type":"GRID_INSERT_ERROR","correlationId":2}`, wantErr: bridge.ErrMalformedMessage},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := bridge.Decode([]byte(tc.raw))
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Decode mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// FuzzDecode checks that arbitrary channel traffic never panics the decoder
// and that an accepted request keeps its identity across a re-encode.
func FuzzDecode(f *testing.F) {
	f.Add([]byte(`{"type":"GRID_INSERT_REQUEST","correlationId":1,"rowIndex":0,"fields":{}}`))
	f.Add([]byte(`{"type":"GRID_INSERT_SUCCESS","correlationId":1,"rowIndex":0}`))
	f.Add([]byte(`{"type":"other"}`))
	f.Add([]byte(`[]`))

	f.Fuzz(func(t *testing.T, data []byte) {
		msg, err := bridge.Decode(data)
		if err != nil {
			assert.ErrorIs(t, err, bridge.ErrUnknownType)
			return
		}
		if msg.Request == nil {
			return
		}
		raw, err := bridge.EncodeRequest(*msg.Request)
		require.NoError(t, err)
		again, err := bridge.Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, msg.Request.CorrelationID, again.Request.CorrelationID)
		assert.Equal(t, msg.Request.RowIndex, again.Request.RowIndex)
	})
}

// FuzzEncodeRequest_Structured fuzzes the request struct itself.
func FuzzEncodeRequest_Structured(f *testing.F) {
	f.Fuzz(func(t *testing.T, data []byte) {
		consumer := fuzz.NewConsumer(data)
		var req schemas.RowInsertionRequest
		if err := consumer.GenerateStruct(&req); err != nil {
			return
		}

		raw, err := bridge.EncodeRequest(req)
		require.NoError(t, err)
		msg, err := bridge.Decode(raw)
		require.NoError(t, err)
		require.NotNil(t, msg.Request)
		assert.Equal(t, req.CorrelationID, msg.Request.CorrelationID)
		assert.Equal(t, req.RowIndex, msg.Request.RowIndex)
		assert.NotNil(t, msg.Request.Fields)
	})
}
