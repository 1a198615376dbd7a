// Package api exposes the JSON HTTP surface: access checks, role grants
// and revokes, tenant and document administration, categories, quota
// introspection, and hybrid search.
//
// Handlers are grouped per concern, each registering its own routes on
// the shared gorilla/mux router. Error responses follow one mapping
// everywhere: validation failures are 400, permission denials 403,
// missing resources 404 for administrative callers and 403 for everyone
// else so document existence never leaks, quota exhaustion 403 with the
// ceiling and current count in the body.
package api
