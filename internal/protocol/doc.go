// Package protocol owns the error contract shared by the sproto wire stack.
//
// Ownership boundary:
// - schema model and ingestion (schema, schemafile)
// - struct encode/decode and the field visitor contract (wire)
// - zero-run byte compaction (pack)
// - session-correlated request/response host (session)
package protocol
