// Package access implements the identity and role store and the access
// decision function for documents.
//
// Principals hold role assignments: registered and tenant_admin scoped to a
// tenant, or super_admin with global scope. A separate direct grant table
// carries registered-equivalent access kept for historical rows. Granting an
// admin-tier role removes the redundant lower rows in the same transaction.
//
// The decider evaluates a fixed rule order over a document's access level and
// is a pure read; unknown or inactive documents deny without revealing
// existence. Decisions for non-passcode documents can be cached in a two-tier
// LRU + Redis cache.
package access
