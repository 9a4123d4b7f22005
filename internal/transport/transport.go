package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Transport performs one authenticated request/response exchange with the
// report service and returns the decoded JSON object.
type Transport interface {
	// Call sends body (nil for none) with the given method to url
	Call(ctx context.Context, method, url string, body map[string]interface{}) (map[string]interface{}, error)
}

// Func adapts a plain function to the Transport interface
type Func func(ctx context.Context, method, url string, body map[string]interface{}) (map[string]interface{}, error)

// Call calls f(ctx, method, url, body)
func (f Func) Call(ctx context.Context, method, url string, body map[string]interface{}) (map[string]interface{}, error) {
	return f(ctx, method, url, body)
}

const maxErrorBody = 512

// decodeObject decodes a JSON object, keeping numbers as json.Number so that
// large report ids and counts survive untouched.
func decodeObject(data []byte) (map[string]interface{}, error) {
	var out map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("failed to decode response: expected a JSON object, got %s", excerpt(data))
	}
	return out, nil
}

func excerpt(data []byte) string {
	if len(data) > maxErrorBody {
		return string(data[:maxErrorBody])
	}
	return string(data)
}
