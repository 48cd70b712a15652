package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot(t *testing.T) Snapshot {
	t.Helper()
	snapshot, err := NewSnapshot(map[string]Table{
		"orders": {
			Columns: []string{"id", "customer_id", "total"},
			Types:   map[string]string{"id": "int", "customer_id": "int", "total": "decimal(10,2)"},
		},
		"customers": {
			Columns: []string{"id", "name"},
			Types:   map[string]string{"id": "int", "name": "varchar(255)"},
		},
	})
	require.NoError(t, err)
	return snapshot
}

func TestNewSnapshotRequiresTypes(t *testing.T) {
	_, err := NewSnapshot(map[string]Table{
		"orders": {Columns: []string{"id", "total"}, Types: map[string]string{"id": "int"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"total"`)
}

func TestSnapshotIsImmutable(t *testing.T) {
	columns := []string{"id"}
	types := map[string]string{"id": "int"}
	snapshot, err := NewSnapshot(map[string]Table{"t": {Columns: columns, Types: types}})
	require.NoError(t, err)

	columns[0] = "mutated"
	types["id"] = "text"
	table, ok := snapshot.Table("t")
	require.True(t, ok)
	assert.Equal(t, []string{"id"}, table.Columns)
	assert.Equal(t, "int", table.Types["id"])

	table.Columns[0] = "again"
	again, _ := snapshot.Table("t")
	assert.Equal(t, "id", again.Columns[0])
}

func TestSnapshotTablesSortedAndStats(t *testing.T) {
	snapshot := sampleSnapshot(t)
	assert.Equal(t, []string{"customers", "orders"}, snapshot.Tables())
	assert.Equal(t, Stats{Tables: 2, Columns: 5, AvgColumnsPerTable: 2.5}, snapshot.Stats())

	empty := Empty()
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, Stats{}, empty.Stats())
}

func TestSnapshotStatsRoundsToOneDecimal(t *testing.T) {
	snapshot, err := NewSnapshot(map[string]Table{
		"a": {Columns: []string{"x"}, Types: map[string]string{"x": "int"}},
		"b": {Columns: []string{"x"}, Types: map[string]string{"x": "int"}},
		"c": {Columns: []string{"x", "y"}, Types: map[string]string{"x": "int", "y": "int"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1.3, snapshot.Stats().AvgColumnsPerTable)
}

func TestSnapshotJSONShape(t *testing.T) {
	snapshot := sampleSnapshot(t)
	raw, err := json.Marshal(snapshot)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"customers": {"columns": ["id", "name"], "types": {"id": "int", "name": "varchar(255)"}},
		"orders": {"columns": ["id", "customer_id", "total"], "types": {"id": "int", "customer_id": "int", "total": "decimal(10,2)"}}
	}`, string(raw))

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, snapshot.Tables(), decoded.Tables())

	emptyRaw, err := json.Marshal(Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(emptyRaw))
}
