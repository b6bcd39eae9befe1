// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dock

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// HandshakePath is the reserved endpoint carrying the version exchange.
const HandshakePath = "/validate_start"

// versionKey is the single field of handshake messages.
const versionKey = "version"

// versionMessage builds {"version": v}.
func versionMessage(v string) map[string]string {
	return map[string]string{versionKey: v}
}

// checkVersion compares the "version" entry of msg against own by exact
// string equality. It returns the peer's version as found (possibly empty).
func checkVersion(own string, msg interface{}) (string, error) {
	m, ok := msg.(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("%w: handshake message is not an object", ErrHandshakeMismatch)
	}
	raw, ok := m[versionKey]
	if !ok {
		return "", fmt.Errorf("%w: no %q entry provided", ErrHandshakeMismatch, versionKey)
	}
	theirs, ok := raw.(string)
	if !ok {
		return fmt.Sprint(raw), fmt.Errorf("%w: %q entry is %T, not a string", ErrHandshakeMismatch, versionKey, raw)
	}
	if theirs != own {
		return theirs, fmt.Errorf("%w: peer version %q, own version %q", ErrHandshakeMismatch, theirs, own)
	}
	return theirs, nil
}

// versionHint describes how two tags relate when both are semantic
// versions. Only used to annotate mismatch logs.
func versionHint(own, theirs string) string {
	a, err := semver.NewVersion(own)
	if err != nil {
		return ""
	}
	b, err := semver.NewVersion(theirs)
	if err != nil {
		return ""
	}
	switch {
	case a.Equal(b):
		return "same semantic version, different spelling"
	case a.Major() != b.Major():
		return "major version differs"
	case a.LessThan(b):
		return "peer is newer"
	default:
		return "peer is older"
	}
}
