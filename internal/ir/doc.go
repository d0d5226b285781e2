// Package ir provides the foundational room-event types for stateres.
//
// This package contains identifiers, the PDU fixture type, content schemas and
// canonical JSON. All other internal packages import ir; ir imports nothing
// internal.
//
// Key design constraints:
//   - Event identifiers are opaque strings ordered by byte value
//   - No float types in canonical JSON - integers only
//   - All JSON tags use snake_case, matching the federation wire names
package ir
