// Package simpleresource provides a reusable library for resource
// record management across a primary record store, a durable backup
// store, and best-effort event fan-out.
//
// It exposes a single Service interface that orchestrates create, get,
// list, update, and delete of resource records with defined consistency
// and recovery semantics: conditional writes against the primary store,
// active-tier mirroring to the backup store, read-through repair of
// primary misses, and two-phase archival on delete. Implementations of
// primary stores (memory, DynamoDB, Postgres), backup stores (memory,
// S3), and event publishers (memory, AWS bus) are provided under
// subpackages.
//
// Consistency Model
//
// The primary store copy is authoritative. The backup active-tier copy
// may be stale or absent but is never ahead of the last completed
// primary write. Events, queue messages, notifications, and metrics are
// advisory: their failures are logged and never roll back a completed
// store mutation.
package simpleresource
