// Package metatools provides the engine-introspection tools offered to
// agent runs under the discover tool policy.
//
// Meta-tools are ordinary local tools whose handlers dispatch through
// the API layer's registered handlers, so an agent can list and start
// workflows, browse and call catalog tools, and inspect or clean up
// background tasks and conversation threads.
package metatools
