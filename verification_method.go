package didevent

import (
	"crypto/ed25519"
	"slices"
)

const verificationMethodSection = "Verification Method"

// Ed25519VerificationKey2018 is the verification method type used for Ed25519 keys.
const Ed25519VerificationKey2018 = "Ed25519VerificationKey2018"

// VerificationMethodData is the body of a VerificationMethod event tree. Field order is the wire
// key order.
type VerificationMethodData struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	Controller         string `json:"controller"`
	PublicKeyMultibase string `json:"publicKeyMultibase"`
}

// Validate checks a tree body received from outside (eg, the ledger) before reconstruction.
func (d *VerificationMethodData) Validate() error {
	if d.ID == "" || d.Type == "" || d.Controller == "" || d.PublicKeyMultibase == "" {
		return missingArgs(verificationMethodSection)
	}
	if !ValidateEventID(d.ID) {
		return errInvalidKeyID
	}
	if _, err := DecodePublicKeyMultibase(d.PublicKeyMultibase); err != nil {
		return err
	}
	return nil
}

// fields shared by the create and update variants
type verificationMethod struct {
	data      VerificationMethodData
	publicKey ed25519.PublicKey
}

func newVerificationMethod(id, typ, controller string, pub ed25519.PublicKey) (verificationMethod, error) {
	if id == "" || typ == "" || controller == "" || len(pub) == 0 {
		return verificationMethod{}, missingArgs(verificationMethodSection)
	}
	data := VerificationMethodData{
		ID:                 id,
		Type:               typ,
		Controller:         controller,
		PublicKeyMultibase: EncodePublicKeyMultibase(pub),
	}
	if err := data.Validate(); err != nil {
		return verificationMethod{}, err
	}
	return verificationMethod{data: data, publicKey: slices.Clone(pub)}, nil
}

func (vm *verificationMethod) TargetName() TargetName {
	return TargetVerificationMethod
}

func (vm *verificationMethod) ID() string {
	return vm.data.ID
}

func (vm *verificationMethod) Type() string {
	return vm.data.Type
}

func (vm *verificationMethod) Controller() string {
	return vm.data.Controller
}

// PublicKey returns a copy of the key passed at construction. It is nil for events rebuilt
// from a JSON tree, which only carry the multibase form.
func (vm *verificationMethod) PublicKey() ed25519.PublicKey {
	return slices.Clone(vm.publicKey)
}

func (vm *verificationMethod) PublicKeyMultibase() string {
	return vm.data.PublicKeyMultibase
}

func (vm *verificationMethod) JSONTree() EventTree {
	return EventTree{TargetVerificationMethod: vm.data}
}

func (vm *verificationMethod) JSON() string {
	return treeJSON(vm.JSONTree())
}

func (vm *verificationMethod) Base64() string {
	return treeBase64(vm.JSONTree())
}

// CreateVerificationMethodEvent adds a verification method (a public key) to a DID document.
type CreateVerificationMethodEvent struct {
	verificationMethod
}

var _ Event = (*CreateVerificationMethodEvent)(nil)

// NewCreateVerificationMethodEvent validates its arguments and derives the multibase form of
// the key. The id must have the form "{did}#key-{integer}".
func NewCreateVerificationMethodEvent(id, typ, controller string, pub ed25519.PublicKey) (*CreateVerificationMethodEvent, error) {
	vm, err := newVerificationMethod(id, typ, controller, pub)
	if err != nil {
		return nil, err
	}
	return &CreateVerificationMethodEvent{vm}, nil
}

// CreateVerificationMethodEventFromJSONTree rebuilds an event from the body of its JSON tree.
// The body is trusted: nothing is re-validated and the multibase key is taken as given.
func CreateVerificationMethodEventFromJSONTree(data VerificationMethodData) *CreateVerificationMethodEvent {
	return &CreateVerificationMethodEvent{verificationMethod{data: data}}
}

func (e *CreateVerificationMethodEvent) Operation() Operation {
	return OperationCreate
}

// UpdateVerificationMethodEvent replaces an existing verification method.
type UpdateVerificationMethodEvent struct {
	verificationMethod
}

var _ Event = (*UpdateVerificationMethodEvent)(nil)

func NewUpdateVerificationMethodEvent(id, typ, controller string, pub ed25519.PublicKey) (*UpdateVerificationMethodEvent, error) {
	vm, err := newVerificationMethod(id, typ, controller, pub)
	if err != nil {
		return nil, err
	}
	return &UpdateVerificationMethodEvent{vm}, nil
}

func UpdateVerificationMethodEventFromJSONTree(data VerificationMethodData) *UpdateVerificationMethodEvent {
	return &UpdateVerificationMethodEvent{verificationMethod{data: data}}
}

func (e *UpdateVerificationMethodEvent) Operation() Operation {
	return OperationUpdate
}

// RevokeVerificationMethodData is the body of a revoke tree, which only names the method.
type RevokeVerificationMethodData struct {
	ID string `json:"id"`
}

func (d *RevokeVerificationMethodData) Validate() error {
	if d.ID == "" {
		return missingArgs(verificationMethodSection)
	}
	if !ValidateEventID(d.ID) {
		return errInvalidKeyID
	}
	return nil
}

// RevokeVerificationMethodEvent removes a verification method from a DID document.
type RevokeVerificationMethodEvent struct {
	data RevokeVerificationMethodData
}

var _ Event = (*RevokeVerificationMethodEvent)(nil)

func NewRevokeVerificationMethodEvent(id string) (*RevokeVerificationMethodEvent, error) {
	data := RevokeVerificationMethodData{ID: id}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return &RevokeVerificationMethodEvent{data: data}, nil
}

func RevokeVerificationMethodEventFromJSONTree(data RevokeVerificationMethodData) *RevokeVerificationMethodEvent {
	return &RevokeVerificationMethodEvent{data: data}
}

func (e *RevokeVerificationMethodEvent) TargetName() TargetName {
	return TargetVerificationMethod
}

func (e *RevokeVerificationMethodEvent) Operation() Operation {
	return OperationRevoke
}

func (e *RevokeVerificationMethodEvent) ID() string {
	return e.data.ID
}

func (e *RevokeVerificationMethodEvent) JSONTree() EventTree {
	return EventTree{TargetVerificationMethod: e.data}
}

func (e *RevokeVerificationMethodEvent) JSON() string {
	return treeJSON(e.JSONTree())
}

func (e *RevokeVerificationMethodEvent) Base64() string {
	return treeBase64(e.JSONTree())
}
