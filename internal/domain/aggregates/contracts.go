package aggregates

// Contract names the tables an aggregate is the sole writer of and the
// invariant that must hold at every commit touching them.
type Contract struct {
	Name        string
	OwnedTables []string
	Invariant   string
}

// Aggregate is implemented by every aggregate root.
type Aggregate interface {
	Contract() Contract
}

// Owns reports whether writes to table must go through the aggregate.
func (c Contract) Owns(table string) bool {
	for _, t := range c.OwnedTables {
		if t == table {
			return true
		}
	}
	return false
}
