package models

// Table is a flat dataset with named columns. Rows are keyed by column name;
// a missing key reads as "".
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// HasColumn reports whether col is one of the table's columns.
func (t *Table) HasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// AddColumn appends col unless it is already present.
func (t *Table) AddColumn(col string) {
	if !t.HasColumn(col) {
		t.Columns = append(t.Columns, col)
	}
}

// Append adds row, extending Columns with any new keys in keyOrder. Keys of
// row missing from keyOrder are ignored.
func (t *Table) Append(row map[string]string, keyOrder []string) {
	for _, k := range keyOrder {
		if _, ok := row[k]; ok {
			t.AddColumn(k)
		}
	}
	t.Rows = append(t.Rows, row)
}

// Record returns row values in column order.
func (t *Table) Record(row map[string]string) []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = row[c]
	}
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }
