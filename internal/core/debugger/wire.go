package debugger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/go-dap"
)

// contentLengthHeader is matched case-insensitively on input; the
// encoder always emits the canonical casing.
const contentLengthHeader = "content-length"

// decodeFrame reads one length-prefixed DAP message from r: header
// lines terminated by a blank line, then exactly Content-Length body
// bytes, parsed as JSON and dispatched by the go-dap message registry.
// A JSON object with no "type" field decodes to a bare
// *dap.ProtocolMessage instead of failing the frame.
//
// EOF before any header byte is read is a clean shutdown signal and is
// returned as io.EOF unwrapped. EOF anywhere else (mid-header or
// mid-body) is ErrTruncated.
func decodeFrame(r *bufio.Reader) (dap.Message, error) {
	contentLength := -1
	sawHeader := false

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				if !sawHeader && line == "" {
					return nil, io.EOF
				}
				return nil, fmt.Errorf("dap: %w: eof reading header", ErrTruncated)
			}
			return nil, fmt.Errorf("dap: reading header: %w", err)
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break // blank line terminates the header block
		}
		sawHeader = true

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, &FramingError{Reason: fmt.Sprintf("malformed header %q", line)}
		}
		if strings.ToLower(strings.TrimSpace(name)) == contentLengthHeader {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 {
				return nil, &FramingError{Reason: fmt.Sprintf("bad Content-Length %q", value)}
			}
			contentLength = n
		}
		// Unknown headers are ignored per contract.
	}

	if contentLength < 0 {
		return nil, &FramingError{Reason: "missing Content-Length header"}
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("dap: %w: eof reading body", ErrTruncated)
		}
		return nil, fmt.Errorf("dap: reading body: %w", err)
	}

	msg, err := dap.DecodeProtocolMessage(body)
	if err != nil {
		var fields map[string]json.RawMessage
		if json.Unmarshal(body, &fields) == nil && fields != nil {
			if _, hasType := fields["type"]; !hasType {
				bare := &dap.ProtocolMessage{}
				_ = json.Unmarshal(body, bare)
				return bare, nil
			}
		}
		return nil, &FramingError{Reason: fmt.Sprintf("invalid JSON body: %v", err)}
	}
	return msg, nil
}

// encodeFrame writes m as a single Content-Length-prefixed frame in one
// Write call followed by an implicit flush (the caller's writer is
// expected to be unbuffered or flushed by the transport's writer task),
// so a partial write cannot occur on a well-behaved pipe.
func encodeFrame(w io.Writer, m dap.Message) error {
	var buf bytes.Buffer
	if err := dap.WriteProtocolMessage(&buf, m); err != nil {
		return fmt.Errorf("dap: encoding message: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("dap: writing frame: %w", err)
	}
	return nil
}
