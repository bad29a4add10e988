package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Editor layer.
	ErrBadInput   = "E_BAD_INPUT"
	ErrSaveFailed = "E_SAVE_FAILED"
	ErrInternal   = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrBadInput:        {},
	ErrSaveFailed:      {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// NewError builds an ERROR. Codes outside the known set are reported as
// E_INTERNAL.
func NewError(code, msg string) ErrorMsg {
	if !IsKnownCode(code) {
		code = ErrInternal
		if msg == "" {
			msg = "unknown error code"
		}
	}
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: msg}
}
