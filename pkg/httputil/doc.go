// Package httputil provides HTTP handler utilities for consistent error
// handling, JSON encoding/decoding, and request parsing across the admin API.
package httputil
