package didevent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateVerificationRelationship(t *testing.T) {
	assert := assert.New(t)

	ev, err := NewCreateVerificationRelationshipEvent(testKeyID, RelationshipAuthentication, Ed25519VerificationKey2018, testIdentifier, testPublicKey(t))
	require.NoError(t, err)
	assert.Equal(TargetVerificationRelationship, ev.TargetName())
	assert.Equal(OperationCreate, ev.Operation())
	assert.Equal(RelationshipAuthentication, ev.RelationshipType())
	assert.Equal(testMultibaseKey, ev.PublicKeyMultibase())
	assert.Equal(testPublicKey(t), ev.PublicKey())
	assert.Equal(
		`{"VerificationRelationship":{"id":"`+testKeyID+`","relationshipType":"authentication","type":"Ed25519VerificationKey2018","controller":"`+testIdentifier+`","publicKeyMultibase":"`+testMultibaseKey+`"}}`,
		ev.JSON(),
	)

	rebuilt := CreateVerificationRelationshipEventFromJSONTree(ev.JSONTree()[TargetVerificationRelationship].(VerificationRelationshipData))
	assert.Equal(ev.JSONTree(), rebuilt.JSONTree())
	assert.Nil(rebuilt.PublicKey())
}

func TestVerificationRelationshipInvalid(t *testing.T) {
	assert := assert.New(t)
	pub := testPublicKey(t)

	_, err := NewCreateVerificationRelationshipEvent(testKeyID, "", Ed25519VerificationKey2018, testIdentifier, pub)
	assert.EqualError(err, "Validation failed. Verification Relationship args are missing")

	_, err = NewCreateVerificationRelationshipEvent(testKeyID, RelationshipKeyAgreement, Ed25519VerificationKey2018, testIdentifier, nil)
	assert.ErrorIs(err, ErrMissingArgument)

	_, err = NewUpdateVerificationRelationshipEvent(testIdentifier, RelationshipKeyAgreement, Ed25519VerificationKey2018, testIdentifier, pub)
	assert.ErrorIs(err, ErrInvalidIdentifier)

	_, err = NewCreateVerificationRelationshipEvent(testKeyID, "signing", Ed25519VerificationKey2018, testIdentifier, pub)
	assert.ErrorIs(err, ErrInvalidArgument)
}

func TestRevokeVerificationRelationship(t *testing.T) {
	assert := assert.New(t)

	ev, err := NewRevokeVerificationRelationshipEvent(testKeyID, RelationshipCapabilityDelegation)
	require.NoError(t, err)
	assert.Equal(OperationRevoke, ev.Operation())
	assert.Equal(RelationshipCapabilityDelegation, ev.RelationshipType())
	assert.Equal(`{"VerificationRelationship":{"id":"`+testKeyID+`","relationshipType":"capabilityDelegation"}}`, ev.JSON())

	_, err = NewRevokeVerificationRelationshipEvent(testKeyID, "")
	assert.ErrorIs(err, ErrMissingArgument)
}

func TestCreateDIDOwner(t *testing.T) {
	assert := assert.New(t)

	ownerID := testIdentifier + "#did-root-key"
	ev, err := NewCreateDIDOwnerEvent(ownerID, testIdentifier, testPublicKey(t))
	require.NoError(t, err)
	assert.Equal(TargetDIDOwner, ev.TargetName())
	assert.Equal(Ed25519VerificationKey2018, ev.Type())
	assert.Equal(testIdentifier, ev.Controller())
	assert.Equal(
		`{"DIDOwner":{"id":"`+ownerID+`","type":"Ed25519VerificationKey2018","controller":"`+testIdentifier+`","publicKeyMultibase":"`+testMultibaseKey+`"}}`,
		ev.JSON(),
	)
	assert.Equal(testIdentifier, EventDID(ev))

	_, err = NewCreateDIDOwnerEvent(testKeyID, testIdentifier, testPublicKey(t))
	assert.EqualError(err, "Event ID is invalid. Expected format: {did}#did-root-key")

	_, err = NewCreateDIDOwnerEvent(ownerID, "", testPublicKey(t))
	assert.EqualError(err, "Validation failed. DID Owner args are missing")
}

func TestKeyEventsNotAliased(t *testing.T) {
	assert := assert.New(t)

	pub := testPublicKey(t)
	vr, err := NewUpdateVerificationRelationshipEvent(testKeyID, RelationshipAuthentication, Ed25519VerificationKey2018, testIdentifier, pub)
	require.NoError(t, err)
	owner, err := NewCreateDIDOwnerEvent(testIdentifier+"#did-root-key", testIdentifier, pub)
	require.NoError(t, err)

	pub[0] ^= 0xff
	assert.Equal(testPublicKey(t), vr.PublicKey())
	assert.Equal(testPublicKey(t), owner.PublicKey())

	vr.PublicKey()[1] ^= 0xff
	owner.PublicKey()[1] ^= 0xff
	assert.Equal(testPublicKey(t), vr.PublicKey())
	assert.Equal(testPublicKey(t), owner.PublicKey())
	assert.Equal(testMultibaseKey, vr.PublicKeyMultibase())
	assert.Equal(testMultibaseKey, owner.PublicKeyMultibase())
}

func TestKeyEventsShortKey(t *testing.T) {
	assert := assert.New(t)
	short := testPublicKey(t)[:31]

	_, err := NewCreateVerificationRelationshipEvent(testKeyID, RelationshipAuthentication, Ed25519VerificationKey2018, testIdentifier, short)
	assert.ErrorIs(err, ErrMalformedEvent)

	_, err = NewCreateDIDOwnerEvent(testIdentifier+"#did-root-key", testIdentifier, short)
	assert.ErrorIs(err, ErrMalformedEvent)
}
