package ocppj

import (
	"encoding/json"
	"fmt"

	"cpsim/internal/messages"
)

// CallType is the first element of every OCPP-J frame, fixing its arity:
// CALL has 4 elements, CALLRESULT 3, CALLERROR 4 or 5.
type CallType int

const (
	CallTypeRequest CallType = 2
	CallTypeResult CallType = 3
	CallTypeError CallType = 4
)

// RawCall is an inbound CALL with its payload left undecoded — the caller
// (the dispatcher) knows which concrete Request type the action implies.
type RawCall struct {
	UniqueId string
	Action string
	Payload json.RawMessage
}

// RawCallResult is an inbound CALLRESULT with its payload left undecoded —
// only the pending-request table knows which concrete Response type the
// original CALL implies.
type RawCallResult struct {
	UniqueId string
	Payload json.RawMessage
}

type RawCallError struct {
	UniqueId string
	Code ErrorCode
	Description string
	Details json.RawMessage
}

// ParseFrame decodes the outer JSON array and routes on its message type.
// Exactly one of the three return values is non-nil on success. uniqueId
// is populated whenever it could be read, even when a later field fails to
// parse, so a caller can still address a CALLERROR reply at the sender.
func ParseFrame(data []byte) (callType CallType, call *RawCall, result *RawCallResult, cerr *RawCallError, uniqueId string, err error) {
	var fields []json.RawMessage
	if err = json.Unmarshal(data, &fields); err != nil {
		return 0, nil, nil, nil, "", fmt.Errorf("malformed frame: %w", err)
	}
	if len(fields) < 3 {
		return 0, nil, nil, nil, "", fmt.Errorf("frame too short: %d elements", len(fields))
	}

	var rawType int
	if err = json.Unmarshal(fields[0], &rawType); err != nil {
		return 0, nil, nil, nil, "", fmt.Errorf("invalid message type: %w", err)
	}
	callType = CallType(rawType)

	if err = json.Unmarshal(fields[1], &uniqueId); err != nil {
		return callType, nil, nil, nil, "", fmt.Errorf("invalid message id: %w", err)
	}

	switch callType {
	case CallTypeRequest:
		if len(fields) != 4 {
			return callType, nil, nil, nil, uniqueId, fmt.Errorf("unsupported CALL format; expected 4 elements, got %d", len(fields))
		}
		var action string
		if err = json.Unmarshal(fields[2], &action); err != nil {
			return callType, nil, nil, nil, uniqueId, fmt.Errorf("invalid action: %w", err)
		}
		return callType, &RawCall{UniqueId: uniqueId, Action: action, Payload: fields[3]}, nil, nil, uniqueId, nil

	case CallTypeResult:
		if len(fields) != 3 {
			return callType, nil, nil, nil, uniqueId, fmt.Errorf("unsupported CALLRESULT format; expected 3 elements, got %d", len(fields))
		}
		return callType, nil, &RawCallResult{UniqueId: uniqueId, Payload: fields[2]}, nil, uniqueId, nil

	case CallTypeError:
		if len(fields) < 4 {
			return callType, nil, nil, nil, uniqueId, fmt.Errorf("unsupported CALLERROR format; expected at least 4 elements, got %d", len(fields))
		}
		var code ErrorCode
		var description string
		if err = json.Unmarshal(fields[2], &code); err != nil {
			return callType, nil, nil, nil, uniqueId, fmt.Errorf("invalid error code: %w", err)
		}
		if err = json.Unmarshal(fields[3], &description); err != nil {
			return callType, nil, nil, nil, uniqueId, fmt.Errorf("invalid error description: %w", err)
		}
		var details json.RawMessage
		if len(fields) >= 5 {
			details = fields[4]
		}
		return callType, nil, nil, &RawCallError{UniqueId: uniqueId, Code: code, Description: description, Details: details}, uniqueId, nil

	default:
		return callType, nil, nil, nil, uniqueId, fmt.Errorf("unsupported message type: %d", rawType)
	}
}

func MarshalCall(uniqueId, action string, payload messages.Request) ([]byte, error) {
	return json.Marshal([]interface{}{int(CallTypeRequest), uniqueId, action, payload})
}

func MarshalCallResult(uniqueId string, payload messages.Response) ([]byte, error) {
	return json.Marshal([]interface{}{int(CallTypeResult), uniqueId, payload})
}

func MarshalCallError(uniqueId string, code ErrorCode, description string, details interface{}) ([]byte, error) {
	if details == nil {
		details = struct{}{}
	}
	return json.Marshal([]interface{}{int(CallTypeError), uniqueId, string(code), description, details})
}
