// Package ledger holds the donation ledger model: donations, the campaign aggregate subset
// the ledger owns, the transition audit row and the single donation status transition table.
//
// raised_amount is a materialized view over COMPLETED donations. It is adjusted
// incrementally by committed transitions and can always be re-derived from donation rows.
package ledger
