package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/gloudx/recordstore/recordstore"
)

// printRecordTable renders one record as a key/value go-pretty table.
func printRecordTable(rid recordstore.Rid, data map[string]any) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("record %d", rid))

	for _, k := range sortedKeys(data) {
		t.AppendRow(table.Row{k, formatValue(data[k])})
	}
	t.Render()
}

// printResultTable renders a rid -> record map as one row per record, the
// column set being the union of every record's keys (missing = blank),
// mirroring cmd/ds/listKeys.go's tabular result listing.
func printResultTable(rows map[recordstore.Rid]any) {
	if len(rows) == 0 {
		fmt.Println("(no records)")
		return
	}

	rids := make([]recordstore.Rid, 0, len(rows))
	colSet := map[string]struct{}{}
	for rid, v := range rows {
		rids = append(rids, rid)
		if m, ok := v.(map[string]any); ok {
			for k := range m {
				colSet[k] = struct{}{}
			}
		}
	}
	sort.Slice(rids, func(i, j int) bool { return rids[i] < rids[j] })
	cols := make([]string, 0, len(colSet))
	for k := range colSet {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	header := table.Row{"rid"}
	for _, c := range cols {
		header = append(header, c)
	}
	t.AppendHeader(header)

	for _, rid := range rids {
		row := table.Row{rid}
		m, _ := rows[rid].(map[string]any)
		for _, c := range cols {
			row = append(row, formatValue(m[c]))
		}
		t.AppendRow(row)
	}
	t.Render()
}

func printStatsTable(stats recordstore.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle("store stats")
	t.AppendRow(table.Row{"records", stats.RecordCount})
	t.AppendSeparator()
	t.AppendHeader(table.Row{"attr", "distinct values", "indexed entries"})
	for _, attr := range sortedStringKeys(stats.Attrs) {
		a := stats.Attrs[attr]
		t.AppendRow(table.Row{attr, a.DistinctValues, a.IndexedEntries})
	}
	t.Render()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedStringKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatValue(v any) string {
	if v == nil {
		return ""
	}
	switch vv := v.(type) {
	case string:
		return vv
	default:
		b, err := json.Marshal(vv)
		if err != nil {
			return fmt.Sprintf("%v", vv)
		}
		return string(b)
	}
}
