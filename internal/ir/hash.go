package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainGraph separates graph fingerprints from any other hash of the
// same bytes. The version suffix allows the algorithm to change later.
const DomainGraph = "reconcile/graph/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// GraphFingerprint hashes the structure of g. The generated name is
// excluded, so two compilations of the same request pair share a fingerprint.
func GraphFingerprint(g PipelineGraph) (string, error) {
	g.Name = ""
	canonical, err := MarshalCanonical(g)
	if err != nil {
		return "", fmt.Errorf("fingerprint graph: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}
