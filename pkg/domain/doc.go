/*
Package domain contains the persisted models of the loom session log.

It is kept free of I/O so that stores, the history log and the hosting
application can share the same types.

# Key Entities

  - LogEntry: one undoable step, a forward and a backward diff plus timing.
  - Snapshot: the versioned, serializable form of a whole history log.
  - LogHooks: callbacks fired by the history log for observability.
*/
package domain
