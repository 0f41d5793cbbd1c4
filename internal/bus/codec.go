package bus

import (
	"encoding/json"
	"fmt"
)

// Envelope is the wire form of a message: {"type": ..., "data": ...}.
// Registrations carry their kind in data.type.
type Envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode renders msg as a JSON envelope.
func Encode(msg Message) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", msg.Type(), err)
	}
	if reg, ok := msg.(Registration); ok {
		fields := map[string]json.RawMessage{}
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("marshal %s: %w", msg.Type(), err)
		}
		kind, _ := json.Marshal(reg.Kind())
		fields["type"] = kind
		if data, err = json.Marshal(fields); err != nil {
			return nil, fmt.Errorf("marshal %s: %w", msg.Type(), err)
		}
	}
	return json.Marshal(Envelope{Type: msg.Type(), Data: data})
}

// Decode parses and validates a JSON envelope. Unknown message types and
// unknown registration kinds are rejected.
func Decode(raw []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var msg Message
	switch env.Type {
	case TypeSuiteRegister:
		var head struct {
			Kind RegisterKind `json:"type"`
		}
		if err := unmarshalData(env, &head); err != nil {
			return nil, err
		}
		switch head.Kind {
		case RegisterKindTest:
			msg = &RegisterTest{}
		case RegisterKindDescribeStart:
			msg = &RegisterDescribeStart{}
		case RegisterKindDescribeEnd:
			msg = &RegisterDescribeEnd{}
		case RegisterKindIt:
			msg = &RegisterIt{}
		case RegisterKindCoverage:
			msg = &RegisterCoverage{}
		default:
			return nil, invalid(env.Type, "data.type", "unexpected registration type %q", head.Kind)
		}
	case TypeSuiteReady:
		msg = &SuiteReady{}
	case TypeSuiteResult:
		msg = &SuiteResult{}
	case TypeSuiteBail:
		msg = &SuiteBail{}
	case TypeRootRun:
		msg = &RootRun{}
	case TypeRootCoverageRequest:
		msg = &RootCoverageRequest{}
	case TypeRootPong:
		msg = &RootPong{}
	case TypeRootEnd:
		msg = &RootEnd{}
	case TypeClientPing:
		msg = &ClientPing{}
	case TypeClientCoverageResult:
		msg = &ClientCoverageResult{}
	default:
		return nil, invalid(env.Type, "type", "unknown message type %q", env.Type)
	}

	if err := unmarshalData(env, msg); err != nil {
		return nil, err
	}
	msg = deref(msg)
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

func unmarshalData(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decode %s data: %w", env.Type, err)
	}
	return nil
}

// deref returns the value form so decoded messages compare equal to the ones
// participants publish.
func deref(msg Message) Message {
	switch m := msg.(type) {
	case *RegisterTest:
		return *m
	case *RegisterDescribeStart:
		return *m
	case *RegisterDescribeEnd:
		return *m
	case *RegisterIt:
		return *m
	case *RegisterCoverage:
		return *m
	case *SuiteReady:
		return *m
	case *SuiteResult:
		return *m
	case *SuiteBail:
		return *m
	case *RootRun:
		return *m
	case *RootCoverageRequest:
		return *m
	case *RootPong:
		return *m
	case *RootEnd:
		return *m
	case *ClientPing:
		return *m
	case *ClientCoverageResult:
		return *m
	default:
		return msg
	}
}
