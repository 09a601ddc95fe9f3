package gateway

import "fmt"

func withColumn(columns []string, column string) []string {
	if len(columns) == 0 {
		return columns
	}
	for _, c := range columns {
		if c == column {
			return columns
		}
	}
	return append(append([]string(nil), columns...), column)
}

func keyOf(v any) string {
	return fmt.Sprint(v)
}

// attachEmbed loads the related rows for every parent with one query and
// stores them under e.Name.
func attachEmbed(parents []Row, e Embed, fetch func(Query) ([]Row, error)) error {
	name := e.Name
	if name == "" {
		name = e.Table
	}

	var keys []any
	seen := map[string]bool{}
	for _, p := range parents {
		v := p[e.LocalKey]
		if v == nil || seen[keyOf(v)] {
			continue
		}
		seen[keyOf(v)] = true
		keys = append(keys, v)
	}

	var children []Row
	if len(keys) > 0 {
		q := From(e.Table).Select(withColumn(e.Columns, e.ForeignKey)...).
			Where(In(e.ForeignKey, keys)).
			OrderBy("id", false)
		var err error
		if children, err = fetch(q); err != nil {
			return fmt.Errorf("embed %s: %w", e.Table, err)
		}
	}

	grouped := map[string][]Row{}
	for _, c := range children {
		k := keyOf(c[e.ForeignKey])
		grouped[k] = append(grouped[k], c)
	}

	for _, p := range parents {
		matched := grouped[keyOf(p[e.LocalKey])]
		if e.Many {
			if matched == nil {
				matched = []Row{}
			}
			p[name] = matched
			continue
		}
		if len(matched) > 0 {
			p[name] = matched[0]
		} else {
			p[name] = nil
		}
	}
	return nil
}
