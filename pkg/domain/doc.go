/*
Package domain contains the core domain models of the callflow IVR engine.

It defines the entities of the call state machine: the menu graph (MenuNode, Option),
the per-call Session with its tagged Phase, the frozen HistoryEntry written at termination,
and the Decision emitted for every input event. This package is kept pure and free of
I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - MenuNode: A state of the IVR (prompt, option table, optional digit collection).
  - Option: What a token does in a menu (goto_menu, end_call, transfer_agent, lookup_record).
  - Session: The live, mutable state of one in-progress call.
  - Decision: The outcome of a single step, rendered by the transport adapters.
*/
package domain
