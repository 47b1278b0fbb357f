// Package driven defines the outbound ports of the dispatch pipeline:
// the ledger, response cache, transaction source, destination gateway
// and configuration interfaces that adapters implement.
package driven
