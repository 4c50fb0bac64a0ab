package scene

// DeepMerge merges diff into base and returns a new map. Neither input is
// mutated, which is what lets the Manager keep pristine base scenes for
// rollback.
//
// Merge rules:
//   - maps merge recursively
//   - lists of records merge by "id" (falling back to "name"): matching
//     records merge recursively, non-matching ones append
//   - scalars and new keys overwrite
func DeepMerge(base, diff map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(diff))
	for key, value := range base {
		merged[key] = cloneValue(value)
	}

	for key, value := range diff {
		existing, ok := merged[key]
		if !ok {
			merged[key] = cloneValue(value)
			continue
		}
		switch existingTyped := existing.(type) {
		case map[string]any:
			if diffMap, isMap := value.(map[string]any); isMap {
				merged[key] = DeepMerge(existingTyped, diffMap)
				continue
			}
		case []any:
			if diffList, isList := value.([]any); isList {
				merged[key] = mergeListByID(existingTyped, diffList)
				continue
			}
		}
		merged[key] = cloneValue(value)
	}
	return merged
}

// mergeListByID merges two lists of records. Records carrying the same
// identifier merge recursively in base order; records new to the diff append
// in diff order. Non-record elements append as-is.
func mergeListByID(base, diff []any) []any {
	merged := make([]any, 0, len(base)+len(diff))
	index := make(map[string]int, len(base))
	for _, item := range base {
		if key, ok := recordKey(item); ok {
			index[key] = len(merged)
		}
		merged = append(merged, cloneValue(item))
	}

	for _, item := range diff {
		key, ok := recordKey(item)
		if !ok {
			merged = append(merged, cloneValue(item))
			continue
		}
		if at, exists := index[key]; exists {
			baseRecord, baseOK := merged[at].(map[string]any)
			diffRecord := item.(map[string]any)
			if baseOK {
				merged[at] = DeepMerge(baseRecord, diffRecord)
				continue
			}
		}
		index[key] = len(merged)
		merged = append(merged, cloneValue(item))
	}
	return merged
}

// recordKey extracts a record's identifier: "id" first, then "name".
func recordKey(item any) (string, bool) {
	record, ok := item.(map[string]any)
	if !ok {
		return "", false
	}
	for _, field := range []string{"id", "name"} {
		if v, ok := record[field].(string); ok && v != "" {
			return field + ":" + v, true
		}
	}
	return "", false
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		cloned := make(map[string]any, len(typed))
		for k, v := range typed {
			cloned[k] = cloneValue(v)
		}
		return cloned
	case []any:
		cloned := make([]any, len(typed))
		for i, v := range typed {
			cloned[i] = cloneValue(v)
		}
		return cloned
	default:
		return typed
	}
}
