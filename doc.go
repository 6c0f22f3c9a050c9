// Package money is a pluggable market-data ingestion framework.
//
// Independent provider packages expose typed operations ("routers") that
// fetch external data, normalize it into symbolic records, optionally
// persist it, and compose into multi-step pipelines. A central session
// coordinates provider loading, dependency lifecycle, and per-call
// injection, and yields each call's output as a stream of normalized
// responses.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│             Session                 │  provider loading, dispatch,
//	│   (start, stop, call, restart)      │  dependency injection
//	└─────────────────────────────────────┘
//	           ↓ dispatches to
//	┌─────────────────────────────────────┐
//	│        Providers / Routers          │  declared operations with
//	│  (catalog → registry → invoke)      │  accepts/returns/stores facts
//	└─────────────────────────────────────┘
//	           ↓ yield
//	┌─────────────────────────────────────┐
//	│       Requests / Responses          │  validated envelopes tagged
//	│   (models, records, symbols)        │  with $/@/# symbols
//	└─────────────────────────────────────┘
//	           ↓ persist / compose
//	┌─────────────────────────────────────┐
//	│      Table store & Compose          │  NATS JetStream KV tables,
//	│   (Store, Bridge, Cycle, Chain)     │  pipeline steps
//	└─────────────────────────────────────┘
//
// Core packages:
//
//   - symbol: discriminator-prefixed addressing ($ identifier, @ timestamp,
//     # attribute, + collection)
//   - record: models, requests, responses, record/object payloads
//   - router: declared operations with metadata and call history
//   - provider: catalog registration, building, and registry lookups
//   - dependency: named resources with lifecycle and exclusive locking
//   - session: the single entry point client code calls
//   - compose: Store/Bridge/Cycle/Chain pipeline steps
//   - tablestore: schema-validated row persistence over NATS JetStream KV
//
// Supporting packages: config (flat env map with YAML overlay), errors
// (classified error taxonomy), metric (Prometheus registry and server),
// health (dependency health aggregation), natsclient (managed NATS
// connection).
//
// # Usage
//
// A provider package registers itself into the catalog, then a session
// runs it:
//
//	provider.Register("ibkr", buildIBKR)
//
//	s, err := session.Connect(ctx,
//		session.WithCatalog(provider.Default),
//		session.WithEnv(env))
//	if err != nil {
//		return err
//	}
//	defer s.Stop(ctx, true)
//
//	stream, err := s.Call(ctx, "ibkr", "bars", map[string]any{
//		"symbol": "AAPL", "period": "1d",
//	})
//	if err != nil {
//		return err
//	}
//	for resp := range stream.Recv() {
//		// each response carries identifier/timestamp/attribute symbols
//	}
package money
