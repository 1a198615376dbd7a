// Package documents manages the document registry and categories.
//
// Documents carry an access level consumed by the access decider, an
// optional tenant association, and per-document overrides for chunk limit
// and model selection. Deletion is soft: active=false hides a document from
// normal access checks while admins can still read it. Mutations are gated
// by role checks and, on creation, by the owning tenant's plan quota.
package documents
