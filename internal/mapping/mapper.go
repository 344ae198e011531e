package mapping

// MapRow renames a raw spreadsheet row into remote column names.
//
// Missing values are dropped first. Without a config the remaining cells pass
// through unchanged. With one, each column is looked up directly and then by
// its normalized name; unmapped columns are discarded. When two raw columns
// map to the same destination the later one wins. Finally every assignment is
// written, overriding mapped values.
func MapRow(row Row, cfg *Config) Row {
	mapped := make(Row, 0, len(row))
	for _, c := range row {
		if IsMissing(c.Value) {
			continue
		}
		if cfg == nil {
			mapped.Set(c.Column, c.Value)
			continue
		}
		target, ok := cfg.Lookup(c.Column)
		if !ok {
			continue
		}
		mapped.Set(target.Column, c.Value)
	}

	if cfg != nil {
		for _, a := range cfg.Assign {
			mapped.Set(a.Column, a.Value)
		}
	}
	return mapped
}

// Unmapped returns the raw columns of row that have no mapping in cfg.
// Missing values are ignored, as MapRow would drop them anyway.
func Unmapped(row Row, cfg *Config) []string {
	if cfg == nil {
		return nil
	}
	var out []string
	for _, c := range row {
		if IsMissing(c.Value) {
			continue
		}
		if _, ok := cfg.Lookup(c.Column); !ok {
			out = append(out, c.Column)
		}
	}
	return out
}
