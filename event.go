package didevent

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
)

// Interface implemented by all event types.
type Event interface {
	// which section of the DID document this event mutates
	TargetName() TargetName
	// whether the event creates, updates or revokes its target
	Operation() Operation
	// the identifier of the document entry the event refers to ("{did}#key-1" etc)
	ID() string
	// JSON tree of the event, with the target name as the single envelope key
	JSONTree() EventTree
	// minified JSON serialization of JSONTree, with a fixed key order
	JSON() string
	// standard base64 of JSON(); this is the payload published to the ledger
	Base64() string
}

// EventTree is the in-memory JSON tree of an event: a single target name mapped to the
// variant's data struct. Field order of the data struct is the serialized key order.
type EventTree map[TargetName]any

// marshalTree serializes without HTML escaping and without the encoder's trailing newline, so
// the output matches a plain JSON.stringify of the same tree byte-for-byte.
func marshalTree(tree EventTree) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tree); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func treeJSON(tree EventTree) string {
	out, err := marshalTree(tree)
	if err != nil {
		return ""
	}
	return string(out)
}

func treeBase64(tree EventTree) string {
	return base64.StdEncoding.EncodeToString([]byte(treeJSON(tree)))
}

// EventDID returns the DID whose document the event mutates.
func EventDID(ev Event) string {
	return SubjectDID(ev.ID())
}
