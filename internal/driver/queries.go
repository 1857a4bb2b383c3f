package driver

// Nodes are stored under a single :GraphNode label with the node type as a
// property; properties are a JSON string. Edges are :LINK relationships with
// the edge type as a property. touch orders nodes by recency.
var SchemaQueries = []string{
	"CREATE INDEX ON :GraphNode(id);",
	"CREATE INDEX ON :GraphNode(type);",
	"CREATE INDEX ON :GraphNode(touch);",
	"CREATE CONSTRAINT ON (n:GraphNode) ASSERT n.id IS UNIQUE;",
	"CREATE CONSTRAINT ON (n:GraphNode) ASSERT n.type, n.canonical_key IS UNIQUE;",
}

const nodeReturn = `
		RETURN n.id AS id, n.type AS type, n.label AS label, n.canonical_key AS canonical_key,
			n.properties AS properties, n.created_at AS created_at, n.updated_at AS updated_at
	`

const (
	GetNodeQuery = `
		MATCH (n:GraphNode {id: $id})` + nodeReturn

	FindNodeByKeyQuery = `
		MATCH (n:GraphNode {type: $type, canonical_key: $canonical_key})` + nodeReturn

	CreateNodeQuery = `
		CREATE (n:GraphNode {
			id: $id,
			type: $type,
			label: $label,
			canonical_key: $canonical_key,
			properties: $properties,
			created_at: $now,
			updated_at: $now,
			touch: $touch
		})
		RETURN n.id AS id
	`

	UpdateNodeQuery = `
		MATCH (n:GraphNode {id: $id})
		SET n.label = $label,
			n.canonical_key = $canonical_key,
			n.properties = $properties,
			n.updated_at = $now,
			n.touch = $touch
		RETURN n.id AS id
	`

	FindEdgeQuery = `
		MATCH (a:GraphNode {id: $from_id})-[e:LINK {type: $type}]->(b:GraphNode {id: $to_id})
		RETURN e.id AS id
	`

	CreateEdgeQuery = `
		MATCH (a:GraphNode {id: $from_id})
		MATCH (b:GraphNode {id: $to_id})
		CREATE (a)-[e:LINK {id: $id, type: $type, properties: $properties, created_at: $now, updated_at: $now}]->(b)
		RETURN e.id AS id
	`

	EdgesFromQuery = `
		MATCH (a:GraphNode {id: $from_id})-[e:LINK]->(b:GraphNode)
		RETURN e.id AS id, e.type AS type, a.id AS from_id, b.id AS to_id,
			e.properties AS properties, e.created_at AS created_at, e.updated_at AS updated_at
		ORDER BY e.created_at
	`

	ContextQuery = `
		MATCH (n:GraphNode)
		WHERE size($types) = 0 OR n.type IN $types
		WITH n ORDER BY n.touch DESC LIMIT $limit` + nodeReturn

	NodesByTypeQuery = `
		MATCH (n:GraphNode {type: $type})
		WITH n ORDER BY n.touch ASC` + nodeReturn
)
