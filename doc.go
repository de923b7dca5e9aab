// Package agentgraph maintains temporal knowledge graphs over multi-agent
// simulation activity.
//
// Agent actions stream in as activities, a language model extracts entities
// and relationships from batches of them, and the graph keeps both the
// current facts and the facts they superseded. Contradicted edges are never
// deleted: they are stamped invalid and expired, so the graph answers both
// "what is true now" and "what was believed then".
//
// # Basic Usage
//
// Create a client over a store and a language model:
//
//	store, err := graph.NewNeo4jStore("bolt://localhost:7687", "neo4j", "password", "neo4j", logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	settings := nlp.NewSettingsStore(cfg.NLP)
//	llm := nlp.NewRotatingClient(settings, nlp.NewUsageLog(cfg.NLP.DataDir, logger), logger)
//
//	client, err := agentgraph.NewClient(store, llm, nil, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
// # Streaming Activities
//
// Each simulation gets one updater; activities are queued and processed in
// batches by a background worker:
//
//	graphID, err := client.CreateGraph(ctx, "proj_1", "twitter run", nil)
//	u, err := client.StartUpdater(ctx, "sim_1", graphID)
//
//	u.AddActivity(&types.Activity{
//		AgentID:    42,
//		AgentName:  "ada",
//		ActionType: "post",
//		Platform:   "twitter",
//		ActionArgs: map[string]any{"content": "I love the new telescope design"},
//	})
//
// # Building from Documents
//
// A graph can also be built from a document in one shot:
//
//	graphID, data, err := client.BuildFromText(ctx, "proj_1", text, &builder.Options{
//		GraphName: "mission briefing",
//	})
//
// # Temporal Queries
//
// Edges carry created_at, valid_at, invalid_at, and expired_at. Queries
// exclude invalidated edges unless asked otherwise:
//
//	edges, err := client.EntityEdges(ctx, graphID, entityUUID, false)
//	for _, e := range edges {
//		fmt.Printf("%s %s %s (%s)\n", e.SourceName, e.Name, e.TargetName, e.Fact)
//	}
//
// # Identity
//
// Entity ids are deterministic over (project, entity type, normalized name),
// so the same entity mentioned in different simulations of one project
// resolves to the same node. Graph ids carry the project id, which scopes
// every query.
//
// # Architecture
//
// The library follows a modular architecture:
//
//   - pkg/graph: store interface, Neo4j and in-memory implementations
//   - pkg/nlp: language model clients, rotation, settings, usage accounting
//   - pkg/extraction: ontology and LLM extraction
//   - pkg/resolve: entity resolution against the graph
//   - pkg/invalidate: contradiction detection between edges
//   - pkg/updater: per-simulation pipeline and registry
//   - pkg/builder: one-shot document builds
//   - pkg/server: HTTP surface over all of the above
//
// This design allows easy extension with additional store backends and
// model providers.
package agentgraph
