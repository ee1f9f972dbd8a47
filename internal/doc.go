// Package internal wires the cache store, event bus, request coordinator,
// and analytics recorder into a single Client.
//
// This package is internal and should not be used directly. Import
// "github.com/sunnychangai/ai-travel-agent-app-sub002" instead, which
// re-exports the public API.
//
// # Composition
//
// New builds the pieces in dependency order: the namespace registry first,
// then the store (optionally backed by a durable mirror), then the request
// coordinator on top of the store, and finally the event bus with the
// default invalidation rules registered. All components share one logger,
// decorated so that every record carries the active traveler identity.
//
//	client := internal.New(
//	    internal.WithLogger(log),
//	    internal.WithDurable(kv.NewMemory()),
//	)
//	defer client.Close()
//
// # Identity lifecycle
//
// SetActiveIdentity is the single entry point for login, logout, and
// account switches. It updates the identity before emitting the
// corresponding event, so invalidation rules and listeners observe the
// new identity while the transition payload still names the previous one:
//
//	client.SetActiveIdentity(ctx, "traveler-42") // login
//	client.SetActiveIdentity(ctx, "")            // logout
//
// # Default invalidation rules
//
// Logout and identity switches clear every identity-scoped namespace for
// the departing identity. Topic changes clear conversation context and
// recommendations. Working-set resets clear conversation state. Additional
// rules can be installed with WithRules or AddRule.
package internal
