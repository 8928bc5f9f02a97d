package didevent

import (
	"crypto/ed25519"
	"slices"
)

const didOwnerSection = "DID Owner"

// DIDOwnerData is the body of a DIDOwner event tree.
type DIDOwnerData struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	Controller         string `json:"controller"`
	PublicKeyMultibase string `json:"publicKeyMultibase"`
}

func (d *DIDOwnerData) Validate() error {
	if d.ID == "" || d.Type == "" || d.Controller == "" || d.PublicKeyMultibase == "" {
		return missingArgs(didOwnerSection)
	}
	if !ValidateOwnerID(d.ID) {
		return errInvalidOwnerID
	}
	if _, err := DecodePublicKeyMultibase(d.PublicKeyMultibase); err != nil {
		return err
	}
	return nil
}

// CreateDIDOwnerEvent registers the root key of a DID document. It is the first event of
// every document's history. The id must have the form "{did}#did-root-key".
type CreateDIDOwnerEvent struct {
	data      DIDOwnerData
	publicKey ed25519.PublicKey
}

var _ Event = (*CreateDIDOwnerEvent)(nil)

func NewCreateDIDOwnerEvent(id, controller string, pub ed25519.PublicKey) (*CreateDIDOwnerEvent, error) {
	if id == "" || controller == "" || len(pub) == 0 {
		return nil, missingArgs(didOwnerSection)
	}
	data := DIDOwnerData{
		ID:                 id,
		Type:               Ed25519VerificationKey2018,
		Controller:         controller,
		PublicKeyMultibase: EncodePublicKeyMultibase(pub),
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return &CreateDIDOwnerEvent{data: data, publicKey: slices.Clone(pub)}, nil
}

func CreateDIDOwnerEventFromJSONTree(data DIDOwnerData) *CreateDIDOwnerEvent {
	return &CreateDIDOwnerEvent{data: data}
}

func (e *CreateDIDOwnerEvent) TargetName() TargetName {
	return TargetDIDOwner
}

func (e *CreateDIDOwnerEvent) Operation() Operation {
	return OperationCreate
}

func (e *CreateDIDOwnerEvent) ID() string {
	return e.data.ID
}

func (e *CreateDIDOwnerEvent) Type() string {
	return e.data.Type
}

func (e *CreateDIDOwnerEvent) Controller() string {
	return e.data.Controller
}

// nil for events rebuilt from a JSON tree
func (e *CreateDIDOwnerEvent) PublicKey() ed25519.PublicKey {
	return slices.Clone(e.publicKey)
}

func (e *CreateDIDOwnerEvent) PublicKeyMultibase() string {
	return e.data.PublicKeyMultibase
}

func (e *CreateDIDOwnerEvent) JSONTree() EventTree {
	return EventTree{TargetDIDOwner: e.data}
}

func (e *CreateDIDOwnerEvent) JSON() string {
	return treeJSON(e.JSONTree())
}

func (e *CreateDIDOwnerEvent) Base64() string {
	return treeBase64(e.JSONTree())
}
