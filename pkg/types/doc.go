// Package types defines the core data types for the agentgraph temporal
// knowledge graph.
//
// This package contains the fundamental types used throughout agentgraph:
//   - Entity: a deduplicated node scoped by project and graph
//   - Relation: a bi-temporal edge between two entities
//   - Activity: one agent action emitted by the simulation driver
//   - ExtractionResult: entities and relations returned by LLM extraction
//   - Message/Response: chat payloads exchanged with language models
//
// # Identity
//
// Entity uuids are deterministic: the same (project, type, name) triple
// always hashes to the same id, so re-ingesting an episode converges
// instead of duplicating nodes. Relation and episode ids are random
// because many facts may coexist between the same pair of entities.
//
// # Temporal fields
//
// Temporal fields are carried as RFC 3339 strings, matching the on-disk
// and in-store representation. An empty InvalidAt means the edge is
// active; once set it is never cleared, and ExpiredAt mirrors it.
package types
