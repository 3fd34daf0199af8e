package field

import (
	"fmt"
)

// Pair is one entry of a value map: the raw bytes found in the stream and the value they
// are presented as.
type Pair struct {
	Raw   []byte
	Value any
}

// P is a shorthand for creating a Pair.
func P(raw []byte, v any) Pair {
	return Pair{Raw: raw, Value: v}
}

// valueMap is a bijection between raw bytes and presentation values. Raw bytes are stored as
// strings so they can be map keys.
type valueMap struct {
	values map[string]any
	raws   map[any]string
	pairs  []Pair
}

func newValueMap(pairs []Pair) (*valueMap, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("value map cannot be empty")
	}

	vm := &valueMap{
		values: make(map[string]any, len(pairs)),
		raws:   make(map[any]string, len(pairs)),
		pairs:  make([]Pair, 0, len(pairs)),
	}
	for _, p := range pairs {
		if !isComparable(p.Value) {
			return nil, fmt.Errorf("value map value of type %T is not comparable", p.Value)
		}
		k := string(p.Raw)
		if _, ok := vm.values[k]; ok {
			return nil, fmt.Errorf("value map has duplicate raw key %#v", p.Raw)
		}
		if _, ok := vm.raws[p.Value]; ok {
			return nil, fmt.Errorf("value map has duplicate value %v, the map must be a bijection", p.Value)
		}
		vm.values[k] = p.Value
		vm.raws[p.Value] = k
		vm.pairs = append(vm.pairs, Pair{Raw: []byte(k), Value: p.Value})
	}
	return vm, nil
}
