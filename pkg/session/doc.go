/*
Package session orchestrates live calls.

The Manager serializes every event of a call behind a per-call lock (optionally
backed by a distributed locker for multi-replica deployments), runs the state
machine, and persists or terminates the session through the configured store.
Record lookups run between two lock sections so that a slow reservation system
never blocks other calls or the store.
*/
package session
