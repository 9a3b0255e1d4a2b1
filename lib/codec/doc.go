// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds tapecat's CBOR configuration for on-disk state.
//
// tapecat keeps two kinds of persistent state: the SQLite catalog and
// small sidecar caches next to the snapshot directory (the generation
// header cache). The sidecars are CBOR so that a refresh can read
// thousands of cached headers without paying XML parse costs. Every
// package that writes a sidecar goes through this package so the
// encoding stays deterministic.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
package codec
