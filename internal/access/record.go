package access

import "reflect"

// Get reads the field named name from a record value: a map[string]any or
// a pointer to a struct whose fields are named by tag. A struct without the
// field reads as nil.
func Get(msg any, tag, name string) (any, error) {
	if m, ok := msg.(map[string]any); ok {
		return m[name], nil
	}
	rv, table, err := structOf(msg, tag)
	if err != nil {
		return nil, err
	}
	acc, ok := table.Lookup(name)
	if !ok {
		return nil, nil
	}
	return acc.Get(rv), nil
}

// Set writes the field named name on a record value and returns the record
// to continue with. Maps are written in place; structs without the field
// are left unchanged.
func Set(msg any, tag, name string, value any) (any, error) {
	if m, ok := msg.(map[string]any); ok {
		m[name] = value
		return m, nil
	}
	rv, table, err := structOf(msg, tag)
	if err != nil {
		return nil, err
	}
	acc, ok := table.Lookup(name)
	if !ok {
		return msg, nil
	}
	if err := acc.Set(rv, value); err != nil {
		return nil, err
	}
	return msg, nil
}

// structOf returns the struct value and accessor table behind msg.
func structOf(msg any, tag string) (reflect.Value, *Table, error) {
	rv, err := Struct(msg)
	if err != nil {
		return reflect.Value{}, nil, err
	}
	table, err := For(rv.Type(), tag)
	if err != nil {
		return reflect.Value{}, nil, err
	}
	return rv, table, nil
}
