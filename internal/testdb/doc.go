//go:build integration

// Package testdb provides utilities for database integration tests.
//
// Tests run inside a transaction that is rolled back when the test
// completes, so they can run in parallel against one database without
// cleanup:
//
//	func TestJobStore(t *testing.T) {
//	    t.Parallel()
//	    db := testdb.GetTestDBWithT(t)
//
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        jobs := postgres.NewPostgresJobStore(tx, nil)
//	        ...
//	    })
//	}
//
// DATABASE_URL (or SCRY_TEST_DB_URL) selects the database. When neither is
// set, GetTestDBWithT skips the test.
package testdb
