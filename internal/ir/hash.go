package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainUnit      = "loregate/unit/v1"
	DomainProcedure = "loregate/procedure/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// UnitID computes the content-addressed ID of a unit from its category,
// key and payload. Priority and order are excluded: moving a unit does not
// change its identity.
func UnitID(u Unit) (string, error) {
	payload := u
	payload.ID = ""
	payload.Priority = 0
	payload.Order = 0

	canonical, err := MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("UnitID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainUnit, canonical), nil
}

// ProcedureHash computes the identity of a compiled procedure from its
// version and ordered unit IDs.
func ProcedureHash(version string, unitIDs []string) (string, error) {
	obj := map[string]any{
		"version": version,
		"units":   unitIDs,
	}
	if unitIDs == nil {
		obj["units"] = []string{}
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ProcedureHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainProcedure, canonical), nil
}
