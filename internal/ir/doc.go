// Package ir provides the canonical intermediate representation for compiled
// checklist programs and the values conditions are evaluated over.
//
// This package contains type definitions and value helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Values are a sealed set (IRString, IRInt, IRFloat, IRBool, IRArray,
//     IRObject, IRNull); anything reaching the engine is converted first
//   - Strings are NFC normalized and enums collapse to their string value
//     when converted, so "Yes" and YesNo.Yes are the same operand
//   - All JSON tags use snake_case
//   - Content hashes use RFC 8785 canonical JSON with domain separation
package ir
