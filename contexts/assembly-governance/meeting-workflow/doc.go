// Package meetingworkflow implements the meeting lifecycle inside the
// assembly-governance context: a guarded status machine from draft through
// archived, a fast-forward launch path, result consolidation triggers, and a
// confirmation-gated demo reset. Status changes flow through a single
// transition table so illegal pairs cannot exist by construction.
package meetingworkflow
