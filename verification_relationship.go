package didevent

import (
	"crypto/ed25519"
	"slices"
)

const verificationRelationshipSection = "Verification Relationship"

// Verification relationship types, as defined by DID Core.
const (
	RelationshipAuthentication       = "authentication"
	RelationshipAssertionMethod      = "assertionMethod"
	RelationshipKeyAgreement         = "keyAgreement"
	RelationshipCapabilityInvocation = "capabilityInvocation"
	RelationshipCapabilityDelegation = "capabilityDelegation"
)

var errUnsupportedRelationship = newError(ErrInvalidArgument, "Validation failed. Relationship type is not supported")

func isRelationshipType(s string) bool {
	switch s {
	case RelationshipAuthentication, RelationshipAssertionMethod, RelationshipKeyAgreement,
		RelationshipCapabilityInvocation, RelationshipCapabilityDelegation:
		return true
	}
	return false
}

// VerificationRelationshipData is the body of a VerificationRelationship event tree.
type VerificationRelationshipData struct {
	ID                 string `json:"id"`
	RelationshipType   string `json:"relationshipType"`
	Type               string `json:"type"`
	Controller         string `json:"controller"`
	PublicKeyMultibase string `json:"publicKeyMultibase"`
}

func (d *VerificationRelationshipData) Validate() error {
	if d.ID == "" || d.RelationshipType == "" || d.Type == "" || d.Controller == "" || d.PublicKeyMultibase == "" {
		return missingArgs(verificationRelationshipSection)
	}
	if !ValidateEventID(d.ID) {
		return errInvalidKeyID
	}
	if !isRelationshipType(d.RelationshipType) {
		return errUnsupportedRelationship
	}
	if _, err := DecodePublicKeyMultibase(d.PublicKeyMultibase); err != nil {
		return err
	}
	return nil
}

type verificationRelationship struct {
	data      VerificationRelationshipData
	publicKey ed25519.PublicKey
}

func newVerificationRelationship(id, relationshipType, typ, controller string, pub ed25519.PublicKey) (verificationRelationship, error) {
	if id == "" || relationshipType == "" || typ == "" || controller == "" || len(pub) == 0 {
		return verificationRelationship{}, missingArgs(verificationRelationshipSection)
	}
	data := VerificationRelationshipData{
		ID:                 id,
		RelationshipType:   relationshipType,
		Type:               typ,
		Controller:         controller,
		PublicKeyMultibase: EncodePublicKeyMultibase(pub),
	}
	if err := data.Validate(); err != nil {
		return verificationRelationship{}, err
	}
	return verificationRelationship{data: data, publicKey: slices.Clone(pub)}, nil
}

func (vr *verificationRelationship) TargetName() TargetName {
	return TargetVerificationRelationship
}

func (vr *verificationRelationship) ID() string {
	return vr.data.ID
}

func (vr *verificationRelationship) RelationshipType() string {
	return vr.data.RelationshipType
}

func (vr *verificationRelationship) Type() string {
	return vr.data.Type
}

func (vr *verificationRelationship) Controller() string {
	return vr.data.Controller
}

// nil for events rebuilt from a JSON tree
func (vr *verificationRelationship) PublicKey() ed25519.PublicKey {
	return slices.Clone(vr.publicKey)
}

func (vr *verificationRelationship) PublicKeyMultibase() string {
	return vr.data.PublicKeyMultibase
}

func (vr *verificationRelationship) JSONTree() EventTree {
	return EventTree{TargetVerificationRelationship: vr.data}
}

func (vr *verificationRelationship) JSON() string {
	return treeJSON(vr.JSONTree())
}

func (vr *verificationRelationship) Base64() string {
	return treeBase64(vr.JSONTree())
}

// CreateVerificationRelationshipEvent binds a key to one of the document's verification
// relationships (authentication, keyAgreement, ...).
type CreateVerificationRelationshipEvent struct {
	verificationRelationship
}

var _ Event = (*CreateVerificationRelationshipEvent)(nil)

func NewCreateVerificationRelationshipEvent(id, relationshipType, typ, controller string, pub ed25519.PublicKey) (*CreateVerificationRelationshipEvent, error) {
	vr, err := newVerificationRelationship(id, relationshipType, typ, controller, pub)
	if err != nil {
		return nil, err
	}
	return &CreateVerificationRelationshipEvent{vr}, nil
}

func CreateVerificationRelationshipEventFromJSONTree(data VerificationRelationshipData) *CreateVerificationRelationshipEvent {
	return &CreateVerificationRelationshipEvent{verificationRelationship{data: data}}
}

func (e *CreateVerificationRelationshipEvent) Operation() Operation {
	return OperationCreate
}

type UpdateVerificationRelationshipEvent struct {
	verificationRelationship
}

var _ Event = (*UpdateVerificationRelationshipEvent)(nil)

func NewUpdateVerificationRelationshipEvent(id, relationshipType, typ, controller string, pub ed25519.PublicKey) (*UpdateVerificationRelationshipEvent, error) {
	vr, err := newVerificationRelationship(id, relationshipType, typ, controller, pub)
	if err != nil {
		return nil, err
	}
	return &UpdateVerificationRelationshipEvent{vr}, nil
}

func UpdateVerificationRelationshipEventFromJSONTree(data VerificationRelationshipData) *UpdateVerificationRelationshipEvent {
	return &UpdateVerificationRelationshipEvent{verificationRelationship{data: data}}
}

func (e *UpdateVerificationRelationshipEvent) Operation() Operation {
	return OperationUpdate
}

type RevokeVerificationRelationshipData struct {
	ID               string `json:"id"`
	RelationshipType string `json:"relationshipType"`
}

func (d *RevokeVerificationRelationshipData) Validate() error {
	if d.ID == "" || d.RelationshipType == "" {
		return missingArgs(verificationRelationshipSection)
	}
	if !ValidateEventID(d.ID) {
		return errInvalidKeyID
	}
	if !isRelationshipType(d.RelationshipType) {
		return errUnsupportedRelationship
	}
	return nil
}

type RevokeVerificationRelationshipEvent struct {
	data RevokeVerificationRelationshipData
}

var _ Event = (*RevokeVerificationRelationshipEvent)(nil)

func NewRevokeVerificationRelationshipEvent(id, relationshipType string) (*RevokeVerificationRelationshipEvent, error) {
	data := RevokeVerificationRelationshipData{ID: id, RelationshipType: relationshipType}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return &RevokeVerificationRelationshipEvent{data: data}, nil
}

func RevokeVerificationRelationshipEventFromJSONTree(data RevokeVerificationRelationshipData) *RevokeVerificationRelationshipEvent {
	return &RevokeVerificationRelationshipEvent{data: data}
}

func (e *RevokeVerificationRelationshipEvent) TargetName() TargetName {
	return TargetVerificationRelationship
}

func (e *RevokeVerificationRelationshipEvent) Operation() Operation {
	return OperationRevoke
}

func (e *RevokeVerificationRelationshipEvent) ID() string {
	return e.data.ID
}

func (e *RevokeVerificationRelationshipEvent) RelationshipType() string {
	return e.data.RelationshipType
}

func (e *RevokeVerificationRelationshipEvent) JSONTree() EventTree {
	return EventTree{TargetVerificationRelationship: e.data}
}

func (e *RevokeVerificationRelationshipEvent) JSON() string {
	return treeJSON(e.JSONTree())
}

func (e *RevokeVerificationRelationshipEvent) Base64() string {
	return treeBase64(e.JSONTree())
}
