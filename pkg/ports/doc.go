/*
Package ports defines the driven ports (interfaces) of loom.

These interfaces decouple the session log from external implementations,
allowing snapshots to be kept in memory, on disk or in Redis.

# Key Interfaces

  - SnapshotStore: persists and loads history snapshots by session ID.
  - DistributedLocker: provides distributed locking for concurrent session access.
*/
package ports
