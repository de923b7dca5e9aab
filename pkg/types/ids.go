package types

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GraphIDPrefix namespaces every graph id minted by this module.
const GraphIDPrefix = "agentgraph"

// NowISO returns the current time in the RFC 3339 rendering used for all
// temporal fields.
func NowISO() string {
	return time.Now().Format(time.RFC3339)
}

// FormatTime renders t the same way NowISO renders the current time.
func FormatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

// EntityUUID derives the deterministic id of an entity from its scoping
// project, canonical type, and normalized name. Upserting the same triple
// twice always lands on the same node.
func EntityUUID(projectID, entityType, name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	sum := sha1.Sum([]byte(projectID + ":" + entityType + ":" + normalized))
	return "ent_" + hex.EncodeToString(sum[:])[:16]
}

// NewRelationUUID returns a fresh edge id. Relation ids are random because
// multiple facts may exist between the same pair of entities.
func NewRelationUUID() string {
	return "rel_" + randomHex(16)
}

// NewEpisodeID returns a fresh episode id for one processed batch.
func NewEpisodeID() string {
	return "ep_" + randomHex(16)
}

// NewChunkID returns a fresh chunk id for document ingestion.
func NewChunkID() string {
	return "chunk_" + randomHex(12)
}

// NewGraphID returns a fresh graph id. The middle segment marks locally
// managed graphs; the trailing hex doubles as the per-graph project key
// (see ProjectIDFromGraphID).
func NewGraphID() string {
	return fmt.Sprintf("%s_local_%s", GraphIDPrefix, randomHex(16))
}

// ProjectIDFromGraphID extracts the scoping key an updater uses for the
// deterministic entity ids it mints: the third underscore-separated
// segment of the graph id. Ids without that shape fall back to "default".
func ProjectIDFromGraphID(graphID string) string {
	if !strings.Contains(graphID, "_") {
		return "default"
	}
	parts := strings.Split(graphID, "_")
	if len(parts) < 3 || parts[2] == "" {
		return "default"
	}
	return parts[2]
}

func randomHex(n int) string {
	u := uuid.New()
	s := hex.EncodeToString(u[:])
	if n > len(s) {
		n = len(s)
	}
	return s[:n]
}
