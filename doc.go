// Package eventchain implements an in-memory, timestamp-ordered store of
// typed events. Events live in a singly linked chain kept sorted under
// concurrent mutation, with a per-node lock on every link and a sparse
// checkpoint index that lets traversals skip long prefixes of the chain.
//
// Typical usage looks like:
//   - Create a Store with a Config (DefaultConfig is a good start)
//   - Insert events from as many goroutines as needed
//   - Query a type over a closed timestamp range and walk the Cursor
//   - RemoveAll to drop every event of a type, optionally handing the
//     removed events to an Archiver (Redis stream or bbolt file)
//
// The cmd/eventbench directory contains a concurrent producer benchmark
// that exercises the API.
package eventchain
