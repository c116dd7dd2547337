// Package postgres implements the store interfaces on PostgreSQL through
// database/sql with the pgx driver.
//
// Every store accepts a store.DBTX so it can run against a connection pool
// or inside a transaction. The job store uses SELECT ... FOR UPDATE SKIP
// LOCKED for claims and a per-(user, job type) advisory transaction lock
// for rate-limit admission.
package postgres
