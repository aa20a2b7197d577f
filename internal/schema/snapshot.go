// Package schema captures a database's structure and renders it as the
// schema description sent to the model.
package schema

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

type ColumnInfo struct {
	Name         string `json:"name"`
	DeclaredType string `json:"declared_type"`
	Nullable     bool   `json:"nullable"`
	IsPrimaryKey bool   `json:"is_primary_key"`
}

type ForeignKeyInfo struct {
	ColumnName       string `json:"column_name"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

type TableInfo struct {
	Name        string           `json:"name"`
	Columns     []ColumnInfo     `json:"columns"`
	SampleRows  []map[string]any `json:"sample_rows"`
	ForeignKeys []ForeignKeyInfo `json:"foreign_keys"`
}

// Snapshot is a point-in-time capture of a database's tables in discovery
// order. It is treated as read-only once built; reconnecting produces a new
// snapshot instead of patching an old one.
type Snapshot struct {
	Database   string      `json:"database"`
	CapturedAt time.Time   `json:"captured_at"`
	Tables     []TableInfo `json:"tables"`

	index map[string]int
}

// NewSnapshot deep-copies tables and indexes them by name. Duplicate names
// are rejected.
func NewSnapshot(database string, capturedAt time.Time, tables []TableInfo) (*Snapshot, error) {
	copied := make([]TableInfo, len(tables))
	for i, table := range tables {
		copied[i] = table.clone()
	}
	index := make(map[string]int, len(copied))
	for i, table := range copied {
		if table.Name == "" {
			return nil, fmt.Errorf("table at position %d has no name", i)
		}
		if _, exists := index[table.Name]; exists {
			return nil, fmt.Errorf("duplicate table name %q", table.Name)
		}
		index[table.Name] = i
	}
	return &Snapshot{
		Database:   database,
		CapturedAt: capturedAt,
		Tables:     copied,
		index:      index,
	}, nil
}

// Table looks a table up by name. Snapshots decoded from JSON carry no index
// and fall back to a scan.
func (s *Snapshot) Table(name string) (TableInfo, bool) {
	if s == nil {
		return TableInfo{}, false
	}
	if s.index == nil {
		for _, table := range s.Tables {
			if table.Name == name {
				return table, true
			}
		}
		return TableInfo{}, false
	}
	i, ok := s.index[name]
	if !ok {
		return TableInfo{}, false
	}
	return s.Tables[i], true
}

func (t TableInfo) clone() TableInfo {
	out := TableInfo{
		Name:        t.Name,
		Columns:     slices.Clone(t.Columns),
		ForeignKeys: slices.Clone(t.ForeignKeys),
	}
	if t.SampleRows != nil {
		out.SampleRows = make([]map[string]any, len(t.SampleRows))
		for i, row := range t.SampleRows {
			out.SampleRows[i] = maps.Clone(row)
		}
	}
	return out
}

func (s *Snapshot) TableNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Tables))
	for _, table := range s.Tables {
		names = append(names, table.Name)
	}
	return names
}

func (s *Snapshot) ForeignKeyCount() int {
	if s == nil {
		return 0
	}
	count := 0
	for _, table := range s.Tables {
		count += len(table.ForeignKeys)
	}
	return count
}
