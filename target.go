package didevent

// TargetName identifies the section of a DID document that an event mutates. It is also the
// envelope key of the event's JSON tree.
type TargetName string

const (
	TargetVerificationMethod       TargetName = "VerificationMethod"
	TargetService                  TargetName = "Service"
	TargetVerificationRelationship TargetName = "VerificationRelationship"
	TargetDIDOwner                 TargetName = "DIDOwner"
)

// Operation is the kind of mutation an event applies to its target.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationRevoke Operation = "revoke"
)

func ParseOperation(s string) (Operation, error) {
	switch op := Operation(s); op {
	case OperationCreate, OperationUpdate, OperationRevoke:
		return op, nil
	default:
		return "", newError(ErrUnsupportedEvent, "unsupported event operation: "+s)
	}
}
