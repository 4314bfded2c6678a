package htsmsg

// Map is an ordered mapping from short field names (0-255 bytes on the wire)
// to Value. The wire format does not enforce key uniqueness, but every
// consumer in this module requires it, so Set overwrites an existing key in
// place rather than appending a duplicate field.
type Map struct {
	order []string
	vals  map[string]Value
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{vals: make(map[string]Value)}
}

// Set stores v under name, preserving the original insertion position if
// name is already present.
func (m *Map) Set(name string, v Value) {
	if m.vals == nil {
		m.vals = make(map[string]Value)
	}
	if _, exists := m.vals[name]; !exists {
		m.order = append(m.order, name)
	}
	m.vals[name] = v
}

// SetInt64 is a convenience wrapper around Set(name, Int64Value(v)).
func (m *Map) SetInt64(name string, v int64) { m.Set(name, Int64Value(v)) }

// SetStr is a convenience wrapper around Set(name, StrValue(v)).
func (m *Map) SetStr(name string, v string) { m.Set(name, StrValue(v)) }

// SetBin is a convenience wrapper around Set(name, BinValue(v)).
func (m *Map) SetBin(name string, v []byte) { m.Set(name, BinValue(v)) }

// Get returns the value stored under name.
func (m *Map) Get(name string) (Value, bool) {
	if m == nil || m.vals == nil {
		return Value{}, false
	}
	v, ok := m.vals[name]
	return v, ok
}

// Has reports whether name is present.
func (m *Map) Has(name string) bool {
	_, ok := m.Get(name)
	return ok
}

// Delete removes name, if present.
func (m *Map) Delete(name string) {
	if m == nil || m.vals == nil {
		return
	}
	if _, ok := m.vals[name]; !ok {
		return
	}
	delete(m.vals, name)
	for i, k := range m.order {
		if k == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Keys returns field names in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of fields.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// GetStr returns the string at name, or ok=false if absent or not a Str.
func (m *Map) GetStr(name string) (string, bool) {
	v, ok := m.Get(name)
	if !ok || v.Kind != KindStr {
		return "", false
	}
	return v.Str, true
}

// GetInt64 returns the integer at name, or ok=false if absent or not an S64.
func (m *Map) GetInt64(name string) (int64, bool) {
	v, ok := m.Get(name)
	if !ok || v.Kind != KindS64 {
		return 0, false
	}
	return v.I64, true
}

// GetBin returns the bytes at name, or ok=false if absent or not a Bin.
func (m *Map) GetBin(name string) ([]byte, bool) {
	v, ok := m.Get(name)
	if !ok || v.Kind != KindBin {
		return nil, false
	}
	return v.Bin, true
}

// GetMap returns the nested Map at name, or ok=false if absent or not a Map.
func (m *Map) GetMap(name string) (*Map, bool) {
	v, ok := m.Get(name)
	if !ok || v.Kind != KindMap {
		return nil, false
	}
	return v.Map, true
}

// GetList returns the nested List at name, or ok=false if absent or not a List.
func (m *Map) GetList(name string) (*List, bool) {
	v, ok := m.Get(name)
	if !ok || v.Kind != KindList {
		return nil, false
	}
	return v.List, true
}
