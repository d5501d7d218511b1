// Package app composes the escrow client: the HTTP transport, the API
// client, the lookup cache, the notifier and the workflow services built on
// them, plus the lifecycle of the long-running parts (the transaction
// watcher and its ops server).
//
// Layout:
//
//	internal/app/
//	├── api/          REST client for the escrow backend
//	├── domain/       records and the pure rules over them (steps, fees)
//	├── hydrate/      assembles a transaction with its related records
//	├── cache/        memory and Redis lookup caches
//	├── services/     workflows per area (auth, transactions, products, ...)
//	├── notify/       EmailJS notices for disputes, cancel requests and help
//	├── watch/        cron-driven change watcher
//	├── ops/          /metrics and /healthz
//	├── metrics/      Prometheus collectors
//	└── system/       start/stop ordering
package app
