package websocket

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

const maxCloseReason = maxControlPayload - 2

// parseClosePayload parses the body of a received close frame.
// An empty body means the peer sent no status.
func parseClosePayload(p []byte) (CloseError, error) {
	if len(p) == 0 {
		return CloseError{
			Code: StatusNoStatusRcvd,
		}, nil
	}

	if len(p) < 2 {
		return CloseError{}, fmt.Errorf("close payload %q too small, cannot even contain the 2 byte status code", p)
	}

	ce := CloseError{
		Code:   StatusCode(binary.BigEndian.Uint16(p)),
		Reason: string(p[2:]),
	}

	if !validWireCloseCode(ce.Code) {
		return CloseError{}, fmt.Errorf("invalid status code %v", ce.Code)
	}
	if !utf8.ValidString(ce.Reason) {
		return CloseError{}, fmt.Errorf("close reason is not valid UTF-8: %q", ce.Reason)
	}

	return ce, nil
}

// bytes marshals ce into a close frame body.
// StatusNoStatusRcvd marshals to an empty body.
func (ce CloseError) bytes() ([]byte, error) {
	if ce.Code == StatusNoStatusRcvd {
		return nil, nil
	}

	if len(ce.Reason) > maxCloseReason {
		return nil, fmt.Errorf("reason string max is %v but got %q with length %v", maxCloseReason, ce.Reason, len(ce.Reason))
	}
	if !utf8.ValidString(ce.Reason) {
		return nil, fmt.Errorf("reason %q is not valid UTF-8", ce.Reason)
	}
	if !validWireCloseCode(ce.Code) {
		return nil, fmt.Errorf("status code %v cannot be set", ce.Code)
	}

	buf := make([]byte, 2+len(ce.Reason))
	binary.BigEndian.PutUint16(buf, uint16(ce.Code))
	copy(buf[2:], ce.Reason)
	return buf, nil
}

// echo returns the close frame sent back to a peer that started the
// close handshake.
func (ce CloseError) echo() CloseError {
	if ce.Code == StatusNoStatusRcvd {
		return CloseError{Code: StatusNormalClosure}
	}
	return ce
}
