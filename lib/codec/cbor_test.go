// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
	"time"
)

type cacheRecord struct {
	Volume     string            `cbor:"volume"`
	Generation uint64            `cbor:"generation"`
	Written    time.Time         `cbor:"written"`
	Labels     map[string]string `cbor:"labels,omitempty"`
}

func TestMarshalDeterministic(t *testing.T) {
	record := cacheRecord{
		Volume:     "c0ffee00-0000-4000-8000-000000000001",
		Generation: 42,
		Written:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Labels:     map[string]string{"zeta": "1", "alpha": "2", "mid": "3"},
	}

	first, err := Marshal(record)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(record)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("encoding is not deterministic across calls")
		}
	}

	var decoded cacheRecord
	if err := Unmarshal(first, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Generation != 42 || decoded.Volume != record.Volume {
		t.Errorf("decoded = %+v", decoded)
	}
	if !decoded.Written.Equal(record.Written) {
		t.Errorf("Written = %v, want %v", decoded.Written, record.Written)
	}
}

func TestUnknownFieldsIgnored(t *testing.T) {
	type newer struct {
		Volume string `cbor:"volume"`
		Extra  string `cbor:"extra"`
	}
	data, err := Marshal(newer{Volume: "v", Extra: "ignored"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var older cacheRecord
	if err := Unmarshal(data, &older); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if older.Volume != "v" {
		t.Errorf("Volume = %q, want v", older.Volume)
	}
}

func TestStreamRoundTrip(t *testing.T) {
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for i := range 3 {
		if err := encoder.Encode(cacheRecord{Generation: uint64(i)}); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}
	decoder := NewDecoder(&buffer)
	for i := range 3 {
		var record cacheRecord
		if err := decoder.Decode(&record); err != nil {
			t.Fatalf("Decode %d: %v", i, err)
		}
		if record.Generation != uint64(i) {
			t.Errorf("record %d generation = %d", i, record.Generation)
		}
	}
}
