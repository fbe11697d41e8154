package tool

import (
	"encoding/json"
	"errors"

	"github.com/hupe1980/convomesh/core"
)

// Result is what a tool reports back to the model.
type Result struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`

	// Attachment, when set, is shown to the model as an extra message after
	// the tool results of the round (camera snapshots).
	Attachment *core.Content `json:"-"`
}

// OK builds a successful result.
func OK(message string) Result { return Result{Success: true, Message: message} }

// Fail builds an unsuccessful result.
func Fail(message string) Result { return Result{Success: false, Message: message} }

// WithData returns a copy of r carrying key=value in Data.
func (r Result) WithData(key string, value any) Result {
	data := make(map[string]any, len(r.Data)+1)
	for k, v := range r.Data {
		data[k] = v
	}
	data[key] = value
	r.Data = data
	return r
}

// FromError converts a call error into an unsuccessful result. ToolError
// codes are kept in Data.
func FromError(err error) Result {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return Fail(toolErr.Message).WithData("code", toolErr.Code)
	}
	return Fail(err.Error()).WithData("code", CodeExecution)
}

// JSON encodes the result for a function response message.
func (r Result) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		return `{"success":false,"message":"unencodable tool result"}`
	}
	return string(b)
}
