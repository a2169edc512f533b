package debugger

import (
	"encoding/json"

	"github.com/google/go-dap"
)

// InitializeCommand performs the handshake that must precede every
// other request on a freshly started adapter (§4.6). It is never
// cacheable: each session sends exactly one.
type InitializeCommand struct {
	ClientID  string
	ClientName string
	AdapterID string
}

func NewInitializeCommand(clientID, clientName, adapterID string) *InitializeCommand {
	return &InitializeCommand{ClientID: clientID, ClientName: clientName, AdapterID: adapterID}
}

func (c *InitializeCommand) Name() string       { return "initialize" }
func (c *InitializeCommand) Cacheable() bool     { return false }
func (c *InitializeCommand) Key() RequestKey     { return hashArgs(c.Name(), c) }
func (c *InitializeCommand) Supported(Capabilities) bool { return true } // always the first request

func (c *InitializeCommand) BuildRequest(seq int) dap.Message {
	return &dap.InitializeRequest{
		Request: newRequest(seq, c.Name()),
		Arguments: dap.InitializeRequestArguments{
			ClientID:                    c.ClientID,
			ClientName:                  c.ClientName,
			AdapterID:                   c.AdapterID,
			PathFormat:                  "path",
			LinesStartAt1:               true,
			ColumnsStartAt1:             true,
			SupportsVariableType:        true,
			SupportsVariablePaging:      false,
			SupportsRunInTerminalRequest: true,
			SupportsMemoryReferences:    true,
			SupportsProgressReporting:   true,
			SupportsInvalidatedEvent:    true,
			SupportsStartDebuggingRequest: true,
		},
	}
}

// DecodeResponse yields the negotiated Capabilities; Client.Initialize
// (client.go) stores them on the client.
func (c *InitializeCommand) DecodeResponse(resp *dap.Response) (Capabilities, error) {
	return parseCapabilities(resp.Body)
}

// LaunchCommand and AttachCommand carry Configuration as an opaque,
// adapter-specific JSON blob (§2, §6): this core never interprets
// launch/attach arguments beyond passing them through.
type LaunchCommand struct {
	Configuration json.RawMessage
	NoDebug       bool
}

func NewLaunchCommand(config json.RawMessage, noDebug bool) *LaunchCommand {
	return &LaunchCommand{Configuration: config, NoDebug: noDebug}
}

func (c *LaunchCommand) Name() string       { return "launch" }
func (c *LaunchCommand) Cacheable() bool     { return false }
func (c *LaunchCommand) Key() RequestKey     { return hashArgs(c.Name(), c.Configuration) }
func (c *LaunchCommand) Supported(Capabilities) bool { return true }

func (c *LaunchCommand) BuildRequest(seq int) dap.Message {
	args := mergeNoDebug(c.Configuration, c.NoDebug)
	return &dap.LaunchRequest{Request: newRequest(seq, c.Name()), Arguments: args}
}

func (c *LaunchCommand) DecodeResponse(resp *dap.Response) (struct{}, error) {
	return struct{}{}, nil
}

type AttachCommand struct {
	Configuration json.RawMessage
}

func NewAttachCommand(config json.RawMessage) *AttachCommand {
	return &AttachCommand{Configuration: config}
}

func (c *AttachCommand) Name() string       { return "attach" }
func (c *AttachCommand) Cacheable() bool     { return false }
func (c *AttachCommand) Key() RequestKey     { return hashArgs(c.Name(), c.Configuration) }
func (c *AttachCommand) Supported(Capabilities) bool { return true }

func (c *AttachCommand) BuildRequest(seq int) dap.Message {
	return &dap.AttachRequest{Request: newRequest(seq, c.Name()), Arguments: c.Configuration}
}

func (c *AttachCommand) DecodeResponse(resp *dap.Response) (struct{}, error) {
	return struct{}{}, nil
}

// mergeNoDebug folds noDebug into the adapter-specific configuration
// blob without this core having to understand the rest of its shape.
func mergeNoDebug(config json.RawMessage, noDebug bool) json.RawMessage {
	if !noDebug {
		if len(config) == 0 {
			return json.RawMessage("{}")
		}
		return config
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(config, &fields); err != nil || fields == nil {
		fields = make(map[string]json.RawMessage)
	}
	fields["noDebug"] = json.RawMessage("true")
	merged, _ := json.Marshal(fields)
	return merged
}

// ConfigurationDoneCommand tells the adapter breakpoints and other
// initial configuration are complete and it may resume the debuggee
// (§4.6 handshake, step 5).
type ConfigurationDoneCommand struct{}

func NewConfigurationDoneCommand() *ConfigurationDoneCommand { return &ConfigurationDoneCommand{} }

func (c *ConfigurationDoneCommand) Name() string   { return "configurationDone" }
func (c *ConfigurationDoneCommand) Cacheable() bool { return false }
func (c *ConfigurationDoneCommand) Key() RequestKey { return hashArgs(c.Name(), nil) }
func (c *ConfigurationDoneCommand) Supported(caps Capabilities) bool {
	return caps.Supports(CapConfigurationDoneRequest)
}

func (c *ConfigurationDoneCommand) BuildRequest(seq int) dap.Message {
	return &dap.ConfigurationDoneRequest{Request: newRequest(seq, c.Name())}
}

func (c *ConfigurationDoneCommand) DecodeResponse(resp *dap.Response) (struct{}, error) {
	return struct{}{}, nil
}

// DisconnectCommand ends a client's debug session, optionally asking
// the adapter to kill the debuggee.
type DisconnectCommand struct {
	TerminateDebuggee bool
	Restart           bool
}

func NewDisconnectCommand(terminateDebuggee bool) *DisconnectCommand {
	return &DisconnectCommand{TerminateDebuggee: terminateDebuggee}
}

func (c *DisconnectCommand) Name() string       { return "disconnect" }
func (c *DisconnectCommand) Cacheable() bool     { return false }
func (c *DisconnectCommand) Key() RequestKey     { return hashArgs(c.Name(), c) }
func (c *DisconnectCommand) Supported(Capabilities) bool { return true }

func (c *DisconnectCommand) BuildRequest(seq int) dap.Message {
	return &dap.DisconnectRequest{
		Request: newRequest(seq, c.Name()),
		Arguments: &dap.DisconnectArguments{
			Restart:           c.Restart,
			TerminateDebuggee: c.TerminateDebuggee,
		},
	}
}

func (c *DisconnectCommand) DecodeResponse(resp *dap.Response) (struct{}, error) {
	return struct{}{}, nil
}

// TerminateCommand asks the adapter to end the debuggee gracefully,
// preferred over Disconnect when the adapter advertises support.
type TerminateCommand struct {
	Restart bool
}

func NewTerminateCommand() *TerminateCommand { return &TerminateCommand{} }

func (c *TerminateCommand) Name() string       { return "terminate" }
func (c *TerminateCommand) Cacheable() bool     { return false }
func (c *TerminateCommand) Key() RequestKey     { return hashArgs(c.Name(), c) }
func (c *TerminateCommand) Supported(caps Capabilities) bool {
	return caps.Supports(CapTerminateRequest)
}

func (c *TerminateCommand) BuildRequest(seq int) dap.Message {
	return &dap.TerminateRequest{
		Request:   newRequest(seq, c.Name()),
		Arguments: &dap.TerminateArguments{Restart: c.Restart},
	}
}

func (c *TerminateCommand) DecodeResponse(resp *dap.Response) (struct{}, error) {
	return struct{}{}, nil
}

// RestartCommand asks the adapter to restart in place, reusing the
// original (or a replacement) launch/attach configuration.
type RestartCommand struct {
	Configuration json.RawMessage
}

func NewRestartCommand(config json.RawMessage) *RestartCommand {
	return &RestartCommand{Configuration: config}
}

func (c *RestartCommand) Name() string       { return "restart" }
func (c *RestartCommand) Cacheable() bool     { return false }
func (c *RestartCommand) Key() RequestKey     { return hashArgs(c.Name(), c.Configuration) }
func (c *RestartCommand) Supported(caps Capabilities) bool {
	return caps.Supports(CapRestartRequest)
}

func (c *RestartCommand) BuildRequest(seq int) dap.Message {
	return &dap.RestartRequest{Request: newRequest(seq, c.Name()), Arguments: c.Configuration}
}

func (c *RestartCommand) DecodeResponse(resp *dap.Response) (struct{}, error) {
	return struct{}{}, nil
}
