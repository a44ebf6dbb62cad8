package value

import (
	"fmt"
	"math/big"
	"strconv"
)

// Decode converts a Value into native Go data. Integer variants of 64 bits
// and wider become *big.Int, decimals and floats become float64, keys,
// signatures and raw bytes become []byte, arrays become []any and maps
// become map[string]any
func Decode(v Value) (any, error) {
	switch v.kind {
	case KindString:
		return v.text, nil
	case KindDecimal, KindFloat:
		f, err := strconv.ParseFloat(v.text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidNumber, err)
		}
		return f, nil
	case KindI64, KindU64, KindI128, KindU128:
		i, ok := new(big.Int).SetString(v.text, 10)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, v.text)
		}
		return i, nil
	case KindBool:
		return v.flag, nil
	case KindNull:
		return nil, nil
	case KindPublicKey, KindSignature, KindBytes:
		return cloneBytes(v.raw), nil
	case KindArray:
		res := make([]any, 0, len(v.arr))
		for _, elem := range v.arr {
			d, err := Decode(elem)
			if err != nil {
				return nil, err
			}
			res = append(res, d)
		}
		return res, nil
	case KindMap:
		res := make(map[string]any, len(v.obj))
		for k, field := range v.obj {
			d, err := Decode(field)
			if err != nil {
				return nil, err
			}
			res[k] = d
		}
		return res, nil
	default:
		return nil, ErrInvalidValue
	}
}

// EncodeMap encodes each entry of a native map, as used for flow inputs
func EncodeMap[T any](m map[string]T, conv Converter) (map[string]Value, error) {
	res := make(map[string]Value, len(m))
	for k, x := range m {
		v, err := Encode(x, conv)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		res[k] = v
	}
	return res, nil
}
