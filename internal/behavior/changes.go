package behavior

// ChangedVariable records a variable assignment performed by a script so the
// editor can show live values.
type ChangedVariable struct {
	Instance int     `json:"instance"`
	Graph    int64   `json:"graph"`
	Node     int64   `json:"node"`
	Value    float64 `json:"value"`
}

// ChangeLog is an append-only list of ChangedVariable records. Consumers take
// ownership of the accumulated records via Drain.
type ChangeLog struct {
	records []ChangedVariable
}

// Append adds a record.
func (l *ChangeLog) Append(record ChangedVariable) {
	if l == nil {
		return
	}
	l.records = append(l.records, record)
}

// Len reports the number of pending records.
func (l *ChangeLog) Len() int {
	if l == nil {
		return 0
	}
	return len(l.records)
}

// Records returns a copy of the pending records.
func (l *ChangeLog) Records() []ChangedVariable {
	if l == nil || len(l.records) == 0 {
		return nil
	}
	out := make([]ChangedVariable, len(l.records))
	copy(out, l.records)
	return out
}

// Drain returns the pending records and clears the log.
func (l *ChangeLog) Drain() []ChangedVariable {
	if l == nil || len(l.records) == 0 {
		return nil
	}
	out := l.records
	l.records = nil
	return out
}
