// internal/bridge/protocol.go
package bridge

import (
	"errors"
	"fmt"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/formbridge/api/schemas"
)

// MessageType is the discriminator carried in every protocol message.
type MessageType string

const (
	TypeInsertRequest MessageType = "GRID_INSERT_REQUEST"
	TypeInsertSuccess MessageType = "GRID_INSERT_SUCCESS"
	TypeInsertError   MessageType = "GRID_INSERT_ERROR"
)

var (
	// ErrUnknownType marks traffic that is not part of the protocol. The
	// channel is shared with the host page, so such messages are dropped.
	ErrUnknownType = errors.New("unknown message type")
	// ErrMalformedMessage marks a protocol message missing required fields.
	// It matches ErrUnknownType under errors.Is.
	ErrMalformedMessage = fmt.Errorf("malformed message: %w", ErrUnknownType)
)

// envelope is the wire form shared by all message types.
type envelope struct {
	Type          MessageType       `json:"type"`
	CorrelationID *int64            `json:"correlationId,omitempty"`
	RowIndex      *int              `json:"rowIndex,omitempty"`
	GridIndex     int               `json:"gridIndex,omitempty"`
	Selector      string            `json:"selector,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
	// Data is the field map's name in older page scripts.
	Data    map[string]string `json:"data,omitempty"`
	Method  string            `json:"method,omitempty"`
	Message string            `json:"message,omitempty"`
}

// Message is a decoded protocol message. Request is set for
// TypeInsertRequest, Result for the two reply types.
type Message struct {
	Type    MessageType
	Request *schemas.RowInsertionRequest
	Result  *schemas.RowInsertionResult
}

// EncodeRequest serializes a row insertion request.
func EncodeRequest(req schemas.RowInsertionRequest) ([]byte, error) {
	id, row := req.CorrelationID, req.RowIndex
	fields := req.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	return json.Marshal(envelope{
		Type:          TypeInsertRequest,
		CorrelationID: &id,
		RowIndex:      &row,
		GridIndex:     req.GridIndex,
		Selector:      req.Selector,
		Fields:        fields,
	})
}

// EncodeResult serializes a row insertion result as a success or error reply.
func EncodeResult(res schemas.RowInsertionResult) ([]byte, error) {
	id, row := res.CorrelationID, res.RowIndex
	env := envelope{CorrelationID: &id, RowIndex: &row}
	if res.Succeeded() {
		env.Type = TypeInsertSuccess
		env.Method = res.Method
	} else {
		env.Type = TypeInsertError
		env.Message = res.Message
	}
	return json.Marshal(env)
}

// Decode parses a raw channel message. Anything that is not a well-formed
// protocol message yields an error matching ErrUnknownType.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch env.Type {
	case TypeInsertRequest, TypeInsertSuccess, TypeInsertError:
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if env.CorrelationID == nil || env.RowIndex == nil {
		return Message{}, fmt.Errorf("%w: %s without correlationId or rowIndex", ErrMalformedMessage, env.Type)
	}

	msg := Message{Type: env.Type}
	switch env.Type {
	case TypeInsertRequest:
		fields := env.Fields
		if fields == nil {
			fields = env.Data
		}
		if fields == nil {
			fields = map[string]string{}
		}
		msg.Request = &schemas.RowInsertionRequest{
			CorrelationID: *env.CorrelationID,
			RowIndex:      *env.RowIndex,
			GridIndex:     env.GridIndex,
			Selector:      env.Selector,
			Fields:        fields,
		}
	case TypeInsertSuccess:
		msg.Result = &schemas.RowInsertionResult{
			CorrelationID: *env.CorrelationID,
			RowIndex:      *env.RowIndex,
			Status:        schemas.RowSuccess,
			Method:        env.Method,
		}
	case TypeInsertError:
		msg.Result = &schemas.RowInsertionResult{
			CorrelationID: *env.CorrelationID,
			RowIndex:      *env.RowIndex,
			Status:        schemas.RowFailure,
			Message:       env.Message,
		}
	}
	return msg, nil
}
