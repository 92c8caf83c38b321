// Package pollservice implements chat polls inside the chat-interaction
// context.
//
// The module owns poll creation, vote toggling under optimistic concurrency,
// and the display projection handed to the chat presentation layer. Poll
// records are mutated only through a version-guarded compare-and-swap on a
// single row; no locks are held across requests.
package pollservice
