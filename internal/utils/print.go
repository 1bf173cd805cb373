package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/iancoleman/orderedmap"
)

/**
 * Convert a struct to an ordered map keyed by its json tags
 * @param {interface{}} v - Struct value to convert
 * @returns {*orderedmap.OrderedMap} Map preserving field declaration order
 * @returns {error} Error if the value cannot be marshalled
 */
func StructToOrderedMap(v interface{}) (*orderedmap.OrderedMap, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := orderedmap.New()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}

/**
 * Print records as an aligned table
 * @param {[]*orderedmap.OrderedMap} rows - Records to print, one per line
 * @description
 * - Column headers come from the first record's keys
 * - Formats numbers without a decimal point when they are integral
 */
func PrintFormat(rows []*orderedmap.OrderedMap) {
	if len(rows) == 0 {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	keys := rows[0].Keys()
	for i, key := range keys {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, key)
	}
	fmt.Fprintln(w)

	for _, row := range rows {
		for i, key := range keys {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			value, _ := row.Get(key)
			fmt.Fprint(w, formatCell(value))
		}
		fmt.Fprintln(w)
	}
	w.Flush()
}

func formatCell(value interface{}) string {
	switch v := value.(type) {
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
