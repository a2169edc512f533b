package debugger

import "encoding/json"

// Capabilities is the sparse feature record an adapter reports in its
// initialize response (§3). It is stored as a raw string->bool map
// keyed by the DAP wire field name rather than a fixed struct so that
// the additive `capabilities` event (§4.8) can merge in fields this
// core doesn't otherwise model, without data loss.
type Capabilities struct {
	flags map[string]bool
}

// Well-known capability field names, exactly as they appear on the
// wire in an InitializeResponse body or a CapabilitiesEvent body.
const (
	CapConfigurationDoneRequest         = "supportsConfigurationDoneRequest"
	CapRestartRequest                   = "supportsRestartRequest"
	CapTerminateRequest                 = "supportsTerminateRequest"
	CapTerminateThreadsRequest          = "supportsTerminateThreadsRequest"
	CapSteppingGranularity              = "supportsSteppingGranularity"
	CapSingleThreadExecutionRequests    = "supportsSingleThreadExecutionRequests"
	CapSetVariable                      = "supportsSetVariable"
	CapRestartFrame                     = "supportsRestartFrame"
	CapModulesRequest                   = "supportsModulesRequest"
	CapLoadedSourcesRequest             = "supportsLoadedSourcesRequest"
	CapCompletionsRequest               = "supportsCompletionsRequest"
	CapRunInTerminalRequest             = "supportsRunInTerminalRequest"
	CapStartDebuggingRequest            = "supportsStartDebuggingRequest"
	CapStepBack                         = "supportsStepBack"
	CapEvaluateForHovers                = "supportsEvaluateForHovers"
	CapDelayedStackTraceLoading         = "supportsDelayedStackTraceLoading"
)

// parseCapabilities decodes a raw DAP body value (whatever shape the
// router handed back — json.RawMessage or a generic map[string]any,
// decodeBody normalizes either) into a Capabilities record. Unknown or
// non-boolean fields are ignored; the rest of the core never needs the
// non-bool fields (arrays like exceptionBreakpointFilters are read
// directly off the InitializeResponse by callers that need them, not
// through Capabilities).
func parseCapabilities(body any) (Capabilities, error) {
	var raw map[string]json.RawMessage
	if err := decodeBody(body, &raw); err != nil {
		return Capabilities{}, err
	}
	return Capabilities{flags: extractBoolFlags(raw)}, nil
}

func extractBoolFlags(raw map[string]json.RawMessage) map[string]bool {
	flags := make(map[string]bool, len(raw))
	for k, v := range raw {
		var b bool
		if json.Unmarshal(v, &b) == nil {
			flags[k] = b
		}
	}
	return flags
}

// Supports reports whether the adapter advertised name=true. Missing
// fields default to false, matching DAP's convention that an absent
// capability means unsupported.
func (c Capabilities) Supports(name string) bool {
	if c.flags == nil {
		return false
	}
	return c.flags[name]
}

// Merge applies an additive update: every boolean field present in
// update overwrites (or adds) the corresponding field here; fields not
// mentioned in update are left untouched. Used for the `capabilities`
// event (§4.8), which only ever adds or flips fields forward.
func (c *Capabilities) Merge(update Capabilities) {
	if c.flags == nil {
		c.flags = make(map[string]bool, len(update.flags))
	}
	for k, v := range update.flags {
		c.flags[k] = v
	}
}
