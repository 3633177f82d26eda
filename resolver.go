package main

// pendingRelation parks a relation column whose references could not all be
// resolved at stream time, keeping the full source-id list so the backfill
// pass can recompute the column once every database has been streamed.
type pendingRelation struct {
	Table  string
	RowID  string
	Column string
	Refs   []string
}

// identityResolver maintains the mapping from source entity identifiers to
// relational primary keys. In this schema the primary key is the source
// identifier itself, so resolution is membership: an identifier resolves
// once its record (or table) has been registered. The mapping is append-only
// within a run and is written only by the sequential load and backfill
// phases, so no locking is needed.
type identityResolver struct {
	known   map[string]string // source id → table holding the row
	pending []pendingRelation
}

func newIdentityResolver() *identityResolver {
	return &identityResolver{known: make(map[string]string)}
}

// recordKnown registers that a source identifier has been materialized in
// the given table. Registering twice is a no-op.
func (r *identityResolver) recordKnown(sourceID, table string) {
	if _, ok := r.known[sourceID]; !ok {
		r.known[sourceID] = table
	}
}

// resolve returns the relational primary key for a source identifier.
// Idempotent and side-effect free: unknown identifiers report ok=false and
// callers drop the reference rather than store a sentinel.
func (r *identityResolver) resolve(sourceID string) (string, bool) {
	if _, ok := r.known[sourceID]; ok {
		return sourceID, true
	}
	return "", false
}

// resolveAll filters a reference list down to resolvable primary keys,
// preserving order. The result is never nil: an empty relation stays an
// empty array, not null.
func (r *identityResolver) resolveAll(refs []string) []string {
	resolved := make([]string, 0, len(refs))
	for _, ref := range refs {
		if key, ok := r.resolve(ref); ok {
			resolved = append(resolved, key)
		}
	}
	return resolved
}

// addPending parks a partially-unresolved relation for the backfill pass.
func (r *identityResolver) addPending(table, rowID, column string, refs []string) {
	r.pending = append(r.pending, pendingRelation{
		Table:  table,
		RowID:  rowID,
		Column: column,
		Refs:   append([]string(nil), refs...),
	})
}
