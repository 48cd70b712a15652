package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Table lists a table's columns in declaration order together with their raw
// database types.
type Table struct {
	Columns []string          `json:"columns"`
	Types   map[string]string `json:"types"`
}

func (t Table) clone() Table {
	columns := make([]string, len(t.Columns))
	copy(columns, t.Columns)
	types := make(map[string]string, len(t.Types))
	for name, typ := range t.Types {
		types[name] = typ
	}
	return Table{Columns: columns, Types: types}
}

// Snapshot is an immutable view of a database schema. Accessors return copies.
type Snapshot struct {
	tables map[string]Table
}

func Empty() Snapshot {
	return Snapshot{tables: map[string]Table{}}
}

// NewSnapshot copies tables and checks that every column carries a type.
func NewSnapshot(tables map[string]Table) (Snapshot, error) {
	out := make(map[string]Table, len(tables))
	for name, table := range tables {
		if name == "" {
			return Snapshot{}, fmt.Errorf("table name is required")
		}
		for _, column := range table.Columns {
			if _, ok := table.Types[column]; !ok {
				return Snapshot{}, fmt.Errorf("column %q of table %q has no type", column, name)
			}
		}
		out[name] = table.clone()
	}
	return Snapshot{tables: out}, nil
}

// Tables returns table names in sorted order.
func (s Snapshot) Tables() []string {
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s Snapshot) Table(name string) (Table, bool) {
	table, ok := s.tables[name]
	if !ok {
		return Table{}, false
	}
	return table.clone(), true
}

func (s Snapshot) Len() int {
	return len(s.tables)
}

func (s Snapshot) IsEmpty() bool {
	return len(s.tables) == 0
}

type Stats struct {
	Tables             int     `json:"tables"`
	Columns            int     `json:"columns"`
	AvgColumnsPerTable float64 `json:"avg_columns_per_table"`
}

// Stats rounds the column average to one decimal place.
func (s Snapshot) Stats() Stats {
	stats := Stats{Tables: len(s.tables)}
	for _, table := range s.tables {
		stats.Columns += len(table.Columns)
	}
	if stats.Tables > 0 {
		avg := float64(stats.Columns) / float64(stats.Tables)
		stats.AvgColumnsPerTable = math.Round(avg*10) / 10
	}
	return stats
}

// MarshalJSON emits tables keyed by name. encoding/json sorts map keys, so the
// output is stable for a given snapshot.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	tables := s.tables
	if tables == nil {
		tables = map[string]Table{}
	}
	return json.Marshal(tables)
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var tables map[string]Table
	if err := json.Unmarshal(data, &tables); err != nil {
		return fmt.Errorf("decode schema snapshot: %w", err)
	}
	snapshot, err := NewSnapshot(tables)
	if err != nil {
		return err
	}
	*s = snapshot
	return nil
}
