package pgwire

// FieldDescriptor describes one column of the current result set
// (RowDescription).
type FieldDescriptor struct {
	Name          string
	TableOID      int32
	ColumnAttrNum int16
	DataTypeOID   int32
	DataTypeSize  int16
	TypeModifier  int32
	Format        int16 // 0 = text, 1 = binary (only text is decoded)
}

// Column is one value within a Row: either Value holds the UTF-8 text of
// the column, or Null is true and Value is meaningless.
//
// A name-keyed map would be the other natural representation, but it
// loses data on duplicate column names (last-write-wins); the ordered
// form keeps `select 1 as x, 2 as x` as two distinct columns.
type Column struct {
	Name  string
	Value string
	Null  bool
}

// Row is the ordered set of columns for one DataRow message.
type Row struct {
	Columns []Column
}

// Get returns the first column with the given name. Ok is false if no
// column has that name; a column that is present but SQL NULL is returned
// with ok true and its Null field set.
func (r Row) Get(name string) (Column, bool) {
	for _, c := range r.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// QueryResult is the structured outcome of a simple-query execution.
type QueryResult struct {
	Rows       []Row
	Fields     []FieldDescriptor
	Command    string
	RowCount   int
	CommandTag string
	OID        *int
}
