package didevent

import (
	"crypto/ed25519"
	"fmt"

	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-varint"
)

// multicodec code for "ed25519-pub"
const ed25519PubCodec = 0xed

// EncodePublicKeyMultibase encodes an Ed25519 public key the way DID documents carry it in
// `publicKeyMultibase`: base58btc ('z' prefix) over the ed25519-pub multicodec varint followed
// by the raw key bytes.
func EncodePublicKeyMultibase(pub ed25519.PublicKey) string {
	prefix := varint.ToUvarint(ed25519PubCodec)
	buf := make([]byte, 0, len(prefix)+len(pub))
	buf = append(buf, prefix...)
	buf = append(buf, pub...)
	s, err := multibase.Encode(multibase.Base58BTC, buf)
	if err != nil {
		return ""
	}
	return s
}

// DecodePublicKeyMultibase is the inverse of EncodePublicKeyMultibase.
func DecodePublicKeyMultibase(s string) (ed25519.PublicKey, error) {
	enc, data, err := multibase.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if enc != multibase.Base58BTC {
		return nil, fmt.Errorf("%w: expected base58btc multibase, got %q", ErrMalformedEvent, s[:1])
	}
	codec, n, err := varint.FromUvarint(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if codec != ed25519PubCodec {
		return nil, fmt.Errorf("%w: unexpected multicodec 0x%x", ErrMalformedEvent, codec)
	}
	raw := data[n:]
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: ed25519 public key must be %d bytes, got %d", ErrMalformedEvent, ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}
