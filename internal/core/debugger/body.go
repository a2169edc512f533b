package debugger

import "encoding/json"

// decodeBody normalizes a dap.Response.Body value into target. The
// go-dap response envelope carries Body as an untyped interface{}
// (already decoded into a map[string]interface{} tree by the JSON
// package), so recovering a concrete shape means a marshal/unmarshal
// round trip rather than a direct type assertion. json.RawMessage
// values round-trip through this unchanged, so the same helper works
// whether body arrived pre-decoded or still raw.
func decodeBody(body any, target any) error {
	if body == nil {
		return nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}
