// Copyright 2026 The Keyfold Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds a captured passphrase in memory that is locked
// against swapping and zeroed on release.
//
// The pin spends a short window between rofi exiting and the D reply
// being written to the agent. [Buffer] keeps it outside the Go heap for
// that window: memory comes from mmap(MAP_ANONYMOUS), is locked into
// physical RAM via mlock, and is excluded from core dumps via
// madvise(MADV_DONTDUMP). The garbage collector never sees the region
// and cannot copy or relocate it, so Close genuinely erases the only
// copy.
//
// [NewFromBytes] copies into protected memory and zeros the source
// slice; [Zero] erases intermediate capture buffers. After Close any
// access panics. Close is idempotent.
//
// Depends on golang.org/x/sys/unix. No other project dependencies.
package secret
