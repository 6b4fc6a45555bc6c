package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainProgram = "axis/program/v1"
	DomainAnswers = "axis/answers/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ProgramHash computes the content hash of a compiled program.
// Two compilations of the same definition produce the same hash, so stored
// evaluations can be tied to the exact program revision that produced them.
func ProgramHash(spec *ProgramSpec) (string, error) {
	data, err := json.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("ProgramHash: failed to encode: %w", err)
	}
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return "", fmt.Errorf("ProgramHash: failed to decode: %w", err)
	}
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ProgramHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainProgram, canonical), nil
}

// AnswersHash computes the content hash of an answer snapshot
// (measure id -> latest value).
func AnswersHash(answers IRObject) (string, error) {
	canonical, err := MarshalCanonical(answers)
	if err != nil {
		return "", fmt.Errorf("AnswersHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainAnswers, canonical), nil
}

// MustProgramHash is like ProgramHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustProgramHash(spec *ProgramSpec) string {
	h, err := ProgramHash(spec)
	if err != nil {
		panic(err)
	}
	return h
}
