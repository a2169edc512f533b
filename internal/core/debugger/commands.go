package debugger

import (
	"encoding/json"
	"hash/maphash"

	"github.com/google/go-dap"
)

// requestKeySeed is process-wide: RequestKeys are only ever compared
// within one process (the cache never crosses a restart), so a stable
// cross-process hash is not needed.
var requestKeySeed = maphash.MakeSeed()

// RequestKey identifies a cacheable request by command name plus a
// hash of its arguments (§3): two requests with the same command and
// byte-identical argument JSON collide onto the same cache slot.
type RequestKey struct {
	Command string
	Hash    uint64
}

func hashArgs(command string, args any) RequestKey {
	var h maphash.Hash
	h.SetSeed(requestKeySeed)
	h.WriteString(command)
	if args != nil {
		if raw, err := json.Marshal(args); err == nil {
			_, _ = h.Write(raw)
		}
	}
	return RequestKey{Command: command, Hash: h.Sum64()}
}

// Command is the narrow interface every DAP request type implements.
// The cache (cache.go), the per-client dispatch in client.go, and the
// remote bridge (remote.go) all operate through this interface rather
// than a type switch per command, so adding a command never touches
// those three files.
//
// DecodeResponse is handed the same *dap.Response shape whether the
// request actually went to a local adapter or came back over the
// remote bridge as a synthesized envelope (remote.go), which is what
// lets one command type serve both paths.
type Command[R any] interface {
	Name() string
	Cacheable() bool
	Key() RequestKey
	Supported(caps Capabilities) bool
	BuildRequest(seq int) dap.Message
	DecodeResponse(resp *dap.Response) (R, error)
}

// newRequest builds the common dap.Request envelope every concrete
// command embeds before filling in its own Arguments field.
func newRequest(seq int, command string) dap.Request {
	return dap.Request{
		ProtocolMessage: dap.ProtocolMessage{Seq: seq, Type: "request"},
		Command:         command,
	}
}

// adapterErrorFromResponse turns a success=false DAP response into an
// AdapterError, decoding the optional structured error body (dap's
// ErrorResponseBody) when present.
func adapterErrorFromResponse(command string, resp *dap.Response) error {
	ae := &AdapterError{Command: command, Message: resp.Message}

	var wrapper struct {
		Error *struct {
			ID        int               `json:"id"`
			Format    string            `json:"format"`
			Variables map[string]string `json:"variables"`
			ShowUser  bool              `json:"showUser"`
			URL       string            `json:"url"`
			URLLabel  string            `json:"urlLabel"`
		} `json:"error"`
	}
	if decodeBody(resp.Body, &wrapper) == nil && wrapper.Error != nil {
		ae.Body = &ErrorBody{
			ID:        wrapper.Error.ID,
			Format:    wrapper.Error.Format,
			Variables: wrapper.Error.Variables,
			ShowUser:  wrapper.Error.ShowUser,
			URL:       wrapper.Error.URL,
			URLLabel:  wrapper.Error.URLLabel,
		}
	}
	return ae
}

// syntheticResponse reconstructs the *dap.Response shape DecodeResponse
// expects from a remote bridge reply (remote.go), so every command's
// decode logic is exercised identically regardless of transport.
func syntheticResponse(command string, success bool, message string, body any) *dap.Response {
	return &dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Type: "response"},
		Success:         success,
		Command:         command,
		Message:         message,
		Body:            body,
	}
}
