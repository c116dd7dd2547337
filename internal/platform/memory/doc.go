// Package memory provides an in-process implementation of every store
// interface. A single mutex guards all state, which makes job claims,
// rate-limit admission and WithinTx blocks atomic. It backs engine tests
// and local runs without Postgres.
package memory
