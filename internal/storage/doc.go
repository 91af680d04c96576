// Package storage defines the persistence contract for fleet data and provides
// the in-memory and PostgreSQL backends behind it.
//
// # Overview
//
// Every record the tracker keeps (drones, telemetry samples, component health,
// alerts and maintenance jobs) goes through the Store interface. HTTP
// handlers, the live channel and the seed loader never touch a backend
// directly, so the server can run against memory in development and
// PostgreSQL in production without code changes.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│   service.Fleet / api / live        │
//	└─────────────────────────────────────┘
//	                 │
//	                 ▼
//	┌─────────────────────────────────────┐
//	│          Store interface            │
//	└─────────────────────────────────────┘
//	          │                 │
//	          ▼                 ▼
//	    ┌──────────┐      ┌──────────┐
//	    │  Memory  │      │ Postgres │
//	    │  Store   │      │  Store   │
//	    └──────────┘      └──────────┘
//
// # Implementations
//
// MemoryStore: maps guarded by a sync.RWMutex
//   - Ids start at 1 per table and are never reused
//   - Records are returned by value
//   - No persistence (data lost on restart)
//
// PostgresStore: database/sql with lib/pq
//   - Schema applied at open from embedded golang-migrate files
//   - Dependent rows removed by ON DELETE CASCADE
//   - Telemetry insert and drone update share one transaction
//
// # Semantics shared by all backends
//
//   - DeleteUAV removes the drone's telemetry, components, alerts and
//     maintenance records with it
//   - CreateTelemetry copies battery, signal, speed, altitude and timestamp
//     onto the drone row
//   - CreateAlert always stores acknowledged=false, dismissed=false
//   - Lists of telemetry and alerts are newest first, maintenance is ordered
//     by scheduled date
//   - A limit of zero or less means no limit
//
// # Error Handling
//
// ErrNotFound is returned for any missing row. Callers should test for it
// with errors.Is since backends may wrap it.
//
// # Usage
//
//	store := storage.NewMemoryStore()
//	defer store.Close()
//
//	if _, err := storage.Seed(ctx, store, time.Now()); err != nil {
//	    log.Fatalf("seed: %v", err)
//	}
//
//	uav, err := store.GetUAV(ctx, 1)
//	if errors.Is(err, storage.ErrNotFound) {
//	    // ...
//	}
//
// # Testing
//
// MemoryStore is covered by unit tests. The PostgreSQL tests run the same
// checks and are skipped unless UAV_TEST_DATABASE_URL points at a scratch
// database.
package storage
