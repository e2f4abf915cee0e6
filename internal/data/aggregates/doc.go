// Package aggregates implements the donation ledger write path on GORM.
//
// Every status change and raised_amount adjustment runs here inside one
// transaction, retried on transient storage failures.
package aggregates
