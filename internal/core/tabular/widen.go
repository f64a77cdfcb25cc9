package tabular

// AllNullColumns returns the columns whose value is null in every record
// of the batch. Columns absent from some records count as null there
func (b Batch) AllNullColumns() []string {
	if len(b) == 0 {
		return nil
	}
	var out []string
	for _, col := range b.Columns() {
		allNull := true
		for _, r := range b {
			if v, ok := r[col]; ok && !IsNull(v) {
				allNull = false
				break
			}
		}
		if allNull {
			out = append(out, col)
		}
	}
	return out
}

// WidenAllNull rewrites every all-null column to a typed-nil *string so
// downstream schema inference lands on nullable text instead of an
// unwritable untyped null. Returns the widened column names
func (b Batch) WidenAllNull() []string {
	cols := b.AllNullColumns()
	for _, col := range cols {
		for _, r := range b {
			r[col] = (*string)(nil)
		}
	}
	return cols
}
