package entity

import "encoding/json"

// Dict is the canonical loosely-typed representation used at the boundary
// between the typed entity structs and the on-disk/over-the-wire JSON
// config graph, mirroring the dict objects ToDict/FromDict trade in the
// original implementation.
type Dict map[string]interface{}

func marshalJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func unmarshalJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// toDict round-trips v through JSON to produce its Dict form. Every entity's
// ToDict method is a thin wrapper around this so that struct tags stay the
// single source of truth for field naming.
func toDict(v interface{}) (Dict, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var d Dict
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return d, nil
}

// fromDict round-trips a Dict back into the typed struct pointed to by out.
func fromDict(d Dict, out interface{}) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
