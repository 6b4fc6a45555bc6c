package store

import (
	"encoding/json"
	"fmt"

	"github.com/axisenergy/checklist/internal/ir"
)

// marshalValue converts an answer value to canonical JSON TEXT for storage.
func marshalValue(v ir.IRValue) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// unmarshalValue parses a stored answer value. Integral numbers come back as
// IRInt so large identifiers keep their precision.
func unmarshalValue(data string) (ir.IRValue, error) {
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

// marshalDocument converts a subject document to JSON TEXT with sorted keys.
// Documents may hold nulls (a floorplan without a simulation), which
// canonical JSON forbids, so the sorted-key IRObject encoding is used.
func marshalDocument(doc ir.IRObject) (string, error) {
	if doc == nil {
		doc = ir.IRObject{}
	}
	data, err := doc.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	return string(data), nil
}

// unmarshalDocument parses a stored subject document with the IRObject
// decoder, which keeps nulls, rather than UnmarshalIRValue.
func unmarshalDocument(data string) (ir.IRObject, error) {
	var doc ir.IRObject
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return doc, nil
}

// marshalActive stores an active set as a JSON array in checklist order.
func marshalActive(active []string) (string, error) {
	if active == nil {
		active = []string{}
	}
	data, err := json.Marshal(active)
	if err != nil {
		return "", fmt.Errorf("marshal active set: %w", err)
	}
	return string(data), nil
}

func unmarshalActive(data string) ([]string, error) {
	active := []string{}
	if err := json.Unmarshal([]byte(data), &active); err != nil {
		return nil, fmt.Errorf("unmarshal active set: %w", err)
	}
	return active, nil
}
