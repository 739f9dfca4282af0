// Package model defines the domain records for tutorkit: study sessions,
// chat messages, flashcards, and the versioned local store blob.
//
// Records are flat, JSON-friendly structs with last-write-wins timestamps.
// Each record carries Validate and SetDefaults in the same shape so callers
// can normalize input at the boundary before it touches storage or network.
//
// Ownership rules:
//   - A Session owns its Messages and Cards by id reference.
//   - The local store holds the canonical in-process copy of every record.
//   - The remote store is a write-through mirror, never authoritative.
package model
