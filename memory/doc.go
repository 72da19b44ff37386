// Package memory implements the tiered memory store: three storage
// classes with promotion, demotion, and decay between them.
//
// Tiers:
//   - volatile: bounded in-process LRU; items decay within minutes
//     unless reinforced
//   - durable: externally backed, retention-gated on every
//     consolidation pass
//   - stable: externally backed, reserved for high-importance,
//     highly reinforced items
//
// Architecture:
//   - Store: tier placement, search, and the single consolidation
//     entry point where state actually transitions
//   - VectorIndex: semantic search backend for the durable and stable
//     tiers (chromem-go for local use)
//   - Embedder: text-to-vector conversion (mock for tests, ONNX for
//     offline local embedding)
//
// The store owns MemoryItem lifecycle exclusively. Items are never
// deleted on decay: volatile items that miss the promotion threshold
// are archived to the backing store for auditability.
package memory
