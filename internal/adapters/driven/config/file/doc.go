// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage holding the ops and
//     ERP endpoints, credentials and pipeline tuning knobs
package file
