// Package inmemorystore provides an ephemeral, thread-safe, in-memory
// implementation of the nodestore.Store interface.
//
// # Concurrency Model
//
// Each task's state is independent of every other task's, and the key space
// (the task names of one run) is fixed before the run starts while values
// change frequently. sync.Map fits that pattern without a global lock.
package inmemorystore
