package schema

import "strings"

// FormatSchema renders the snapshot as the schema text embedded in prompts.
// The layout is consumed by the model, so it is fixed: tables in discovery
// order, then every foreign key under a single Relationships header that is
// emitted even when there are none.
func FormatSchema(s *Snapshot) string {
	var b strings.Builder
	b.WriteString("Database Schema:\n")

	var tables []TableInfo
	if s != nil {
		tables = s.Tables
	}

	for _, table := range tables {
		b.WriteString("\nTable: ")
		b.WriteString(table.Name)
		b.WriteString("\nColumns:\n")
		for _, column := range table.Columns {
			b.WriteString("- ")
			b.WriteString(column.Name)
			b.WriteString(" (")
			b.WriteString(column.DeclaredType)
			b.WriteString(") ")
			if column.Nullable {
				b.WriteString("NULL")
			} else {
				b.WriteString("NOT NULL")
			}
			if column.IsPrimaryKey {
				b.WriteString(" PRIMARY KEY")
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\nRelationships:\n")
	for _, table := range tables {
		for _, fk := range table.ForeignKeys {
			b.WriteString("- ")
			b.WriteString(table.Name)
			b.WriteString(".")
			b.WriteString(fk.ColumnName)
			b.WriteString(" -> ")
			b.WriteString(fk.ReferencedTable)
			b.WriteString(".")
			b.WriteString(fk.ReferencedColumn)
			b.WriteString("\n")
		}
	}
	return b.String()
}
