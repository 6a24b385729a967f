// Package memory defines the similarity-searchable store that persists
// agent interaction history, and the embedder abstraction it builds on.
//
// Architecture:
//   - Store: vector storage backend (flat brute-force index for local use,
//     chromem for logical-delete semantics at larger item counts)
//   - Embedder: text-to-vector conversion (ONNX model in-process, Ollama
//     server, or deterministic mock)
//   - Manager: glue the engine calls; retrieves relevant history before a
//     run and records the exchange afterwards, both best-effort
//
// The store owns a nearest-neighbor index and a parallel metadata list;
// position i of one always describes the same item as position i of the
// other. That invariant, not throughput, drives the concurrency design:
// mutations are exclusive, reads are shared, and nothing observes the pair
// mid-mutation.
//
// Memory is an optional side channel. Every operation returns an explicit
// error the caller may surface or ignore, and no memory failure is allowed
// to abort the agent's primary task.
package memory
