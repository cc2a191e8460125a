// Package arbors implements a schema-driven columnar storage engine for
// tree-structured (JSON-shaped) data.
//
// Given a stream of JSON/JSONL documents and an optional JSON-Schema subset
// describing their shape, it builds an Arbor — a dense, pointer-free,
// depth-first-ordered node table with side pools for primitive values and
// interned strings — and can persist batches of Arbors through the
// sibling storage package.
package arbors
