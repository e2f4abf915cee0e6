// Package aggregates declares the ledger aggregate contract and its typed errors.
package aggregates
