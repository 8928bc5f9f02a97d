package didevent

import (
	"strconv"
	"strings"

	"github.com/bluesky-social/indigo/atproto/syntax"
)

const (
	keyFragmentPrefix     = "key-"
	serviceFragmentPrefix = "service-"
	ownerFragment         = "did-root-key"
)

var (
	errInvalidKeyID     = newError(ErrInvalidIdentifier, "Event ID is invalid. Expected format: {did}#key-{integer}")
	errInvalidServiceID = newError(ErrInvalidIdentifier, "Event ID is invalid. Expected format: {did}#service-{integer}")
	errInvalidOwnerID   = newError(ErrInvalidIdentifier, "Event ID is invalid. Expected format: {did}#did-root-key")
)

// splitEventID splits "{did}#{fragment}", checking that the DID part is syntactically a DID.
// Resolvability of the DID is not checked.
func splitEventID(id string) (string, string, bool) {
	did, fragment, found := strings.Cut(id, "#")
	if !found || did == "" || fragment == "" {
		return "", "", false
	}
	if _, err := syntax.ParseDID(did); err != nil {
		return "", "", false
	}
	return did, fragment, true
}

// parseIndexedFragment parses "{prefix}{digits}" into the integer index.
func parseIndexedFragment(fragment, prefix string) (uint64, bool) {
	digits, found := strings.CutPrefix(fragment, prefix)
	if !found || digits == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseEventID splits a verification method (or relationship) event ID of the form
// "{did}#key-{integer}" into its DID and key index.
func ParseEventID(id string) (string, uint64, error) {
	did, fragment, ok := splitEventID(id)
	if !ok {
		return "", 0, errInvalidKeyID
	}
	n, ok := parseIndexedFragment(fragment, keyFragmentPrefix)
	if !ok {
		return "", 0, errInvalidKeyID
	}
	return did, n, nil
}

// ValidateEventID reports whether id has the form "{did}#key-{integer}".
func ValidateEventID(id string) bool {
	_, _, err := ParseEventID(id)
	return err == nil
}

// ParseServiceID is the service counterpart of ParseEventID: "{did}#service-{integer}".
func ParseServiceID(id string) (string, uint64, error) {
	did, fragment, ok := splitEventID(id)
	if !ok {
		return "", 0, errInvalidServiceID
	}
	n, ok := parseIndexedFragment(fragment, serviceFragmentPrefix)
	if !ok {
		return "", 0, errInvalidServiceID
	}
	return did, n, nil
}

func ValidateServiceID(id string) bool {
	_, _, err := ParseServiceID(id)
	return err == nil
}

// ValidateOwnerID reports whether id has the form "{did}#did-root-key".
func ValidateOwnerID(id string) bool {
	_, fragment, ok := splitEventID(id)
	return ok && fragment == ownerFragment
}

// SubjectDID returns the DID portion of an event ID (everything before the first '#').
func SubjectDID(id string) string {
	did, _, _ := strings.Cut(id, "#")
	return did
}
