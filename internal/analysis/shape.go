package analysis

import "strconv"

// Shape zips raw executor rows with the compiled alias list into named
// records, then computes derived metrics. A width mismatch between a row and
// the alias list is a contract violation between compiler and executor and
// surfaces as an internal error.
func Shape(cq *CompiledQuery, rows [][]any) ([]map[string]any, *QueryError) {
	aliases := cq.Aliases()
	out := make([]map[string]any, 0, len(rows))
	for i, row := range rows {
		if len(row) != len(aliases) {
			return nil, internalError("row %d has %d columns, select list has %d", i, len(row), len(aliases))
		}
		rec := make(map[string]any, len(aliases)+1)
		for j, alias := range aliases {
			rec[alias] = normalize(row[j])
		}
		if cq.NeedsAverageCountPerUser {
			count := toFloat(rec[attrEventCount])
			users := toFloat(rec[attrUniqueUserCount])
			avg := 0.0
			if users != 0 {
				avg = count / users
			}
			rec[attrAverageCountPerUser] = avg
		}
		out = append(out, rec)
	}
	return out, nil
}

// normalize unwraps driver-specific scalar representations so records are
// plain strings, bools, int64s and float64s.
func normalize(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint64:
		return int64(t)
	case float32:
		return float64(t)
	case *int64:
		if t == nil {
			return nil
		}
		return *t
	case *float64:
		if t == nil {
			return nil
		}
		return *t
	case *string:
		if t == nil {
			return nil
		}
		return *t
	default:
		return v
	}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case int64:
		return float64(t)
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	case nil:
		return 0
	default:
		return 0
	}
}
