// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package generation decides which captured index is authoritative for
// each LTFS volume.
//
// Every snapshot is identified by a Key: volume UUID, generation
// number and the partition the index was written to. Within a volume
// the highest generation number wins; on a tie an index on the data
// partition ("b") beats one on the index partition ("a"), because LTFS
// writes the data-partition copy last.
//
// Two captures with the same Key but different trees are a conflict.
// The resolver never picks between them: the conflict is reported and,
// if it sits at the volume's highest Key, the volume has no
// authoritative generation until a higher one arrives. Two captures
// with the same Key and the same tree (same TreeHash) are the same
// generation captured twice and are deduplicated silently.
//
// Resolve is a pure function over a candidate list. Resolver is the
// incremental form: Add re-evaluates only the added candidate's
// volume. Scanner applies both to a snapshot directory, parsing as
// little XML as possible with help from a persistent HeaderCache.
package generation
