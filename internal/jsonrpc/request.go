package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Request is the envelope sent for one procedure call
type Request struct {
	JSONRPC string `json:"jsonrpc,omitempty"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      ID     `json:"id"`
}

// NewRequest creates an immediate-mode request with a fresh id. Immediate
// requests omit the version tag, as the daemon's own tooling does.
func NewRequest(method string, params []any) *Request {
	if params == nil {
		params = []any{}
	}
	return &Request{
		Method: method,
		Params: params,
		ID:     NewID(),
	}
}

// NewBatchRequest creates a request destined for a batch array
func NewBatchRequest(method string, params []any) *Request {
	req := NewRequest(method, params)
	req.JSONRPC = Version
	return req
}

// Bytes returns the request as JSON bytes
func (r *Request) Bytes() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return data, nil
}

// MarshalBatch marshals multiple requests as a JSON array
func MarshalBatch(requests []*Request) ([]byte, error) {
	data, err := json.Marshal(requests)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch request: %w", err)
	}
	return data, nil
}

// trimWhitespace removes leading whitespace from byte slice
func trimWhitespace(data []byte) []byte {
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return data[i:]
		}
	}
	return data[len(data):]
}
