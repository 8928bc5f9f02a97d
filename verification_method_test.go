package didevent

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSeedHex      = "9044d8f201e4b0aa7ba8ed577b0334b8cb6e38aad6c596171b5b1246737f5079"
	testMultibaseKey = "z6MkogVzoGJMVVLhaz82cA5jZQKAAqUghhCrpzkSDFDwxfJa"
	testIdentifier   = "did:hedera:testnet:z6MkogVzoGJMVVLhaz82cA5jZQKAAqUghhCrpzkSDFDwxfJa_0.0.29613327"
	testKeyID        = testIdentifier + "#key-1"
)

func testPublicKey(t *testing.T) ed25519.PublicKey {
	t.Helper()
	seed, err := hex.DecodeString(testSeedHex)
	require.NoError(t, err)
	return ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
}

func testCreateVerificationMethodEvent(t *testing.T) *CreateVerificationMethodEvent {
	t.Helper()
	ev, err := NewCreateVerificationMethodEvent(testKeyID, Ed25519VerificationKey2018, testIdentifier, testPublicKey(t))
	require.NoError(t, err)
	return ev
}

func TestCreateVerificationMethodTargets(t *testing.T) {
	assert := assert.New(t)

	ev := testCreateVerificationMethodEvent(t)
	assert.Equal(TargetVerificationMethod, ev.TargetName())
	assert.Equal(OperationCreate, ev.Operation())
}

func TestCreateVerificationMethodMissingArgs(t *testing.T) {
	assert := assert.New(t)
	pub := testPublicKey(t)

	cases := []struct {
		name       string
		id         string
		typ        string
		controller string
		pub        ed25519.PublicKey
	}{
		{"id", "", Ed25519VerificationKey2018, testIdentifier, pub},
		{"type", testKeyID, "", testIdentifier, pub},
		{"controller", testKeyID, Ed25519VerificationKey2018, "", pub},
		{"publicKey", testKeyID, Ed25519VerificationKey2018, testIdentifier, nil},
	}
	for _, c := range cases {
		ev, err := NewCreateVerificationMethodEvent(c.id, c.typ, c.controller, c.pub)
		assert.Nil(ev, c.name)
		assert.ErrorIs(err, ErrMissingArgument, c.name)
		var e *Error
		assert.True(errors.As(err, &e), c.name)
		assert.EqualError(err, "Validation failed. Verification Method args are missing", c.name)
	}
}

func TestCreateVerificationMethodInvalidID(t *testing.T) {
	assert := assert.New(t)

	ev, err := NewCreateVerificationMethodEvent(testIdentifier, Ed25519VerificationKey2018, testIdentifier, testPublicKey(t))
	assert.Nil(ev)
	assert.ErrorIs(err, ErrInvalidIdentifier)
	assert.EqualError(err, "Event ID is invalid. Expected format: {did}#key-{integer}")
}

func TestCreateVerificationMethodAccessors(t *testing.T) {
	assert := assert.New(t)

	ev := testCreateVerificationMethodEvent(t)
	assert.Equal(testKeyID, ev.ID())
	assert.Equal(Ed25519VerificationKey2018, ev.Type())
	assert.Equal(testIdentifier, ev.Controller())
	assert.Equal(testPublicKey(t), ev.PublicKey())
	assert.Equal(testMultibaseKey, ev.PublicKeyMultibase())
}

func TestCreateVerificationMethodSerialization(t *testing.T) {
	assert := assert.New(t)

	ev := testCreateVerificationMethodEvent(t)

	assert.Equal(EventTree{
		TargetVerificationMethod: VerificationMethodData{
			ID:                 testKeyID,
			Type:               Ed25519VerificationKey2018,
			Controller:         testIdentifier,
			PublicKeyMultibase: testMultibaseKey,
		},
	}, ev.JSONTree())

	assert.Equal(
		`{"VerificationMethod":{"id":"did:hedera:testnet:z6MkogVzoGJMVVLhaz82cA5jZQKAAqUghhCrpzkSDFDwxfJa_0.0.29613327#key-1","type":"Ed25519VerificationKey2018","controller":"did:hedera:testnet:z6MkogVzoGJMVVLhaz82cA5jZQKAAqUghhCrpzkSDFDwxfJa_0.0.29613327","publicKeyMultibase":"z6MkogVzoGJMVVLhaz82cA5jZQKAAqUghhCrpzkSDFDwxfJa"}}`,
		ev.JSON(),
	)

	assert.Equal(
		"eyJWZXJpZmljYXRpb25NZXRob2QiOnsiaWQiOiJkaWQ6aGVkZXJhOnRlc3RuZXQ6ejZNa29nVnpvR0pNVlZMaGF6ODJjQTVqWlFLQUFxVWdoaENycHprU0RGRHd4ZkphXzAuMC4yOTYxMzMyNyNrZXktMSIsInR5cGUiOiJFZDI1NTE5VmVyaWZpY2F0aW9uS2V5MjAxOCIsImNvbnRyb2xsZXIiOiJkaWQ6aGVkZXJhOnRlc3RuZXQ6ejZNa29nVnpvR0pNVlZMaGF6ODJjQTVqWlFLQUFxVWdoaENycHprU0RGRHd4ZkphXzAuMC4yOTYxMzMyNyIsInB1YmxpY0tleU11bHRpYmFzZSI6Ino2TWtvZ1Z6b0dKTVZWTGhhejgyY0E1alpRS0FBcVVnaGhDcnB6a1NERkR3eGZKYSJ9fQ==",
		ev.Base64(),
	)
}

func TestCreateVerificationMethodBase64DecodesToTree(t *testing.T) {
	assert := assert.New(t)

	ev := testCreateVerificationMethodEvent(t)
	raw, err := base64.StdEncoding.DecodeString(ev.Base64())
	require.NoError(t, err)

	var decoded map[string]VerificationMethodData
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(ev.JSONTree()[TargetVerificationMethod], decoded[string(TargetVerificationMethod)])
}

func TestCreateVerificationMethodFromJSONTree(t *testing.T) {
	assert := assert.New(t)

	data := VerificationMethodData{
		ID:                 testKeyID,
		Type:               Ed25519VerificationKey2018,
		Controller:         testIdentifier,
		PublicKeyMultibase: testMultibaseKey,
	}
	ev := CreateVerificationMethodEventFromJSONTree(data)
	assert.Equal(EventTree{TargetVerificationMethod: data}, ev.JSONTree())
	assert.Nil(ev.PublicKey())

	orig := testCreateVerificationMethodEvent(t)
	rebuilt := CreateVerificationMethodEventFromJSONTree(orig.JSONTree()[TargetVerificationMethod].(VerificationMethodData))
	assert.Equal(orig.JSONTree(), rebuilt.JSONTree())
	assert.Equal(orig.Base64(), rebuilt.Base64())
}

func TestUpdateVerificationMethod(t *testing.T) {
	assert := assert.New(t)

	ev, err := NewUpdateVerificationMethodEvent(testKeyID, Ed25519VerificationKey2018, testIdentifier, testPublicKey(t))
	require.NoError(t, err)
	assert.Equal(OperationUpdate, ev.Operation())
	assert.Equal(TargetVerificationMethod, ev.TargetName())

	// same wire shape as create; only the operation differs
	create := testCreateVerificationMethodEvent(t)
	assert.Equal(create.JSON(), ev.JSON())

	_, err = NewUpdateVerificationMethodEvent(testKeyID, "", testIdentifier, testPublicKey(t))
	assert.EqualError(err, "Validation failed. Verification Method args are missing")
}

func TestRevokeVerificationMethod(t *testing.T) {
	assert := assert.New(t)

	ev, err := NewRevokeVerificationMethodEvent(testKeyID)
	require.NoError(t, err)
	assert.Equal(OperationRevoke, ev.Operation())
	assert.Equal(`{"VerificationMethod":{"id":"`+testKeyID+`"}}`, ev.JSON())

	_, err = NewRevokeVerificationMethodEvent("")
	assert.ErrorIs(err, ErrMissingArgument)

	_, err = NewRevokeVerificationMethodEvent(testIdentifier + "#service-1")
	assert.ErrorIs(err, ErrInvalidIdentifier)
}

func TestCreateVerificationMethodKeyNotAliased(t *testing.T) {
	assert := assert.New(t)

	pub := testPublicKey(t)
	ev, err := NewCreateVerificationMethodEvent(testKeyID, Ed25519VerificationKey2018, testIdentifier, pub)
	require.NoError(t, err)

	pub[0] ^= 0xff
	assert.Equal(testPublicKey(t), ev.PublicKey())

	got := ev.PublicKey()
	got[1] ^= 0xff
	assert.Equal(testPublicKey(t), ev.PublicKey())

	decoded, err := DecodePublicKeyMultibase(ev.PublicKeyMultibase())
	require.NoError(t, err)
	assert.Equal(ev.PublicKey(), decoded)
}

func TestCreateVerificationMethodShortKey(t *testing.T) {
	_, err := NewCreateVerificationMethodEvent(testKeyID, Ed25519VerificationKey2018, testIdentifier, testPublicKey(t)[:31])
	assert.ErrorIs(t, err, ErrMalformedEvent)
}
