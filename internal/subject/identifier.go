// Package subject derives and parses lattice message-bus subject names, and
// validates the identifier kinds those subjects carry. It is a pure
// function library: no state, no I/O.
package subject

import (
	"fmt"
	"strings"
)

// Kind names a validated identifier kind, per spec.md §4.2.
type Kind string

const (
	KindHostID      Kind = "host id"
	KindComponentID Kind = "component id"
	KindProviderRef Kind = "provider ref"
	KindActorRef    Kind = "actor ref"
	KindLinkName    Kind = "link name"
)

// ValidateIdentifier trims leading/trailing whitespace and rejects the
// result if empty, naming kind in the error so callers can surface a
// human-readable message.
func ValidateIdentifier(kind Kind, raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%s must not be empty", kind)
	}
	return trimmed, nil
}

// ValidateHostID validates a host identifier (a server-class public key).
func ValidateHostID(raw string) (string, error) { return ValidateIdentifier(KindHostID, raw) }

// ValidateComponentID validates a component identifier (a module-class
// public key).
func ValidateComponentID(raw string) (string, error) {
	return ValidateIdentifier(KindComponentID, raw)
}

// ValidateProviderRef validates a provider reference (a service-class
// public key or an image reference naming one).
func ValidateProviderRef(raw string) (string, error) {
	return ValidateIdentifier(KindProviderRef, raw)
}

// ValidateActorRef validates a generic actor reference (component or
// provider id, used interchangeably as a link endpoint).
func ValidateActorRef(raw string) (string, error) { return ValidateIdentifier(KindActorRef, raw) }

// ValidateLinkName validates a link name. Beyond the generic non-empty
// check, link names must not contain the subject-delimiting characters
// '.' or '>' since they are substituted verbatim into bus subjects.
func ValidateLinkName(raw string) (string, error) {
	trimmed, err := ValidateIdentifier(KindLinkName, raw)
	if err != nil {
		return "", err
	}
	if strings.ContainsAny(trimmed, ".>") {
		return "", fmt.Errorf("%s must not contain '.' or '>': %q", KindLinkName, raw)
	}
	return trimmed, nil
}

// ValidateConfigName validates a named-config name: non-empty, no '.' or
// '>' (spec.md §3, §6).
func ValidateConfigName(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("config name must not be empty")
	}
	if strings.ContainsAny(trimmed, ".>") {
		return "", fmt.Errorf("config name must not contain '.' or '>': %q", raw)
	}
	return trimmed, nil
}
