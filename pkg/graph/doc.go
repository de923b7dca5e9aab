// Package graph provides property-graph persistence for agent knowledge
// graphs: entity and relation upserts, bi-temporal edge invalidation,
// mention links, and the candidate searches entity resolution relies on.
//
// The primary backend is Neo4j (NewNeo4jStore). MemoryStore implements the
// same contract in process memory and is the store of choice for tests and
// for running without a database.
package graph
