// Package motionvoting implements motion voting inside the
// assembly-governance context.
//
// The module owns the per-motion lifecycle (create/open/close), ballot
// casting with single-use vote tokens and idempotency-key replay, attendance
// and proxy-based eligibility, degraded-mode manual tallies, and the
// consolidation that freezes official results. Business rules live in the
// domain and application layers; infrastructure stays behind ports and
// adapters.
package motionvoting
