// Package breakdown persists pipeline runs in SQLite and answers the cache
// questions the pipeline asks before doing any work.
//
// Each run is one row keyed by source identity. The canonical breakdown for
// an identity is its most recent successful row; older rows and failures are
// kept until ReconcileDuplicates sweeps them. Cache hits are counted in their
// own table so statistics reflect traffic as well as work.
//
// The schema is embedded and versioned. Opening a database created by a
// different schema version fails with ErrSchemaMismatch.
package breakdown
