package didevent

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// decodes the inner object of an event tree (the value under the target name key)
type decoder func(inner []byte) (Event, error)

// decodeWith builds a decoder for a variant from its tree body type and its FromJSONTree
// constructor. Bodies arriving from outside are validated before reconstruction.
func decodeWith[D any, PD interface {
	*D
	Validate() error
}, E Event](fromJSONTree func(D) E) decoder {
	return func(inner []byte) (Event, error) {
		var data D
		if err := strictUnmarshal(inner, &data); err != nil {
			return nil, newError(ErrMalformedEvent, fmt.Sprintf("malformed event body: %v", err))
		}
		if err := PD(&data).Validate(); err != nil {
			return nil, err
		}
		return fromJSONTree(data), nil
	}
}

// Every event variant must be listed here; there is no other way to decode one.
var registry = map[Operation]map[TargetName]decoder{
	OperationCreate: {
		TargetDIDOwner:                 decodeWith[DIDOwnerData](CreateDIDOwnerEventFromJSONTree),
		TargetVerificationMethod:       decodeWith[VerificationMethodData](CreateVerificationMethodEventFromJSONTree),
		TargetVerificationRelationship: decodeWith[VerificationRelationshipData](CreateVerificationRelationshipEventFromJSONTree),
		TargetService:                  decodeWith[ServiceData](CreateServiceEventFromJSONTree),
	},
	OperationUpdate: {
		TargetVerificationMethod:       decodeWith[VerificationMethodData](UpdateVerificationMethodEventFromJSONTree),
		TargetVerificationRelationship: decodeWith[VerificationRelationshipData](UpdateVerificationRelationshipEventFromJSONTree),
		TargetService:                  decodeWith[ServiceData](UpdateServiceEventFromJSONTree),
	},
	OperationRevoke: {
		TargetVerificationMethod:       decodeWith[RevokeVerificationMethodData](RevokeVerificationMethodEventFromJSONTree),
		TargetVerificationRelationship: decodeWith[RevokeVerificationRelationshipData](RevokeVerificationRelationshipEventFromJSONTree),
		TargetService:                  decodeWith[RevokeServiceData](RevokeServiceEventFromJSONTree),
	},
}

// like json.Unmarshal, but rejecting objects with unknown fields
func strictUnmarshal(b []byte, v interface{}) error {
	decoder := json.NewDecoder(bytes.NewReader(b))
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// DecodeEvent reconstructs an event from the inner object of its JSON tree (the value under
// the target name key), using the decoder registered for the operation and target.
func DecodeEvent(op Operation, target TargetName, inner []byte) (Event, error) {
	dec, ok := registry[op][target]
	if !ok {
		return nil, newError(ErrUnsupportedEvent, fmt.Sprintf("unsupported event type: %s %s", op, target))
	}
	return dec(inner)
}

// ParseEvent reconstructs an event from a full JSON tree, whose single top-level key names
// the target.
func ParseEvent(op Operation, tree []byte) (Event, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(tree, &envelope); err != nil {
		return nil, newError(ErrMalformedEvent, fmt.Sprintf("malformed event tree: %v", err))
	}
	if len(envelope) != 1 {
		return nil, newError(ErrMalformedEvent, fmt.Sprintf("event tree must have exactly one target, found %d", len(envelope)))
	}
	var target string
	var inner json.RawMessage
	for k, v := range envelope {
		target, inner = k, v
	}
	return DecodeEvent(op, TargetName(target), inner)
}

// ParseEventBase64 reconstructs an event from its ledger payload (see Event.Base64).
func ParseEventBase64(op Operation, payload string) (Event, error) {
	tree, err := base64.StdEncoding.Strict().DecodeString(payload)
	if err != nil {
		return nil, newError(ErrMalformedEvent, fmt.Sprintf("malformed event payload: %v", err))
	}
	return ParseEvent(op, tree)
}
