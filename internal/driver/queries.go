package driver

// Causal graph. Events are nodes keyed by id; every causal edge is a CAUSES
// relationship carrying its own uuid so it can be updated or deleted in place.
const (
	SaveCausalEdgeQuery = `
		MERGE (cause:Event {id: $cause_id})
		ON CREATE SET cause.scope_id = $scope_id
		MERGE (effect:Event {id: $effect_id})
		ON CREATE SET effect.scope_id = $scope_id
		CREATE (cause)-[e:CAUSES {uuid: $uuid}]->(effect)
		SET e.scope_id = $scope_id,
			e.type = $type,
			e.strength = $strength,
			e.explanation = $explanation,
			e.created_at = $created_at,
			e.updated_at = $updated_at
		RETURN e.uuid AS uuid
	`

	UpdateCausalEdgeQuery = `
		MATCH (:Event)-[e:CAUSES {uuid: $uuid}]->(:Event)
		SET e.strength = $strength,
			e.explanation = $explanation,
			e.updated_at = $updated_at
		RETURN e.uuid AS uuid
	`

	DeleteCausalEdgeQuery = `
		MATCH (:Event)-[e:CAUSES {uuid: $uuid}]->(:Event)
		WITH e, e.uuid AS uuid
		DELETE e
		RETURN uuid
	`

	GetCausalEdgeQuery = `
		MATCH (cause:Event)-[e:CAUSES {uuid: $uuid}]->(effect:Event)
		RETURN ` + causalEdgeFields

	GetOutgoingCausalEdgesQuery = `
		MATCH (cause:Event {id: $event_id})-[e:CAUSES]->(effect:Event)
		RETURN ` + causalEdgeFields + `
		ORDER BY e.created_at, e.uuid
	`

	GetIncomingCausalEdgesQuery = `
		MATCH (cause:Event)-[e:CAUSES]->(effect:Event {id: $event_id})
		RETURN ` + causalEdgeFields + `
		ORDER BY e.created_at, e.uuid
	`

	causalEdgeFields = `e.uuid AS uuid,
			e.scope_id AS scope_id,
			cause.id AS cause_id,
			effect.id AS effect_id,
			e.type AS type,
			e.strength AS strength,
			e.explanation AS explanation,
			e.created_at AS created_at,
			e.updated_at AS updated_at
	`
)
