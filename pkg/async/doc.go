// Package async provides safe goroutine management with panic recovery,
// context cancellation, and timeout enforcement.
//
// Use SafeGo instead of bare `go func()` for fire-and-forget work such as
// cache invalidation, usage counters, and background cleanup.
package async
