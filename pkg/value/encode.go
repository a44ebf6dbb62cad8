package value

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"
)

// Converter is consulted for values the built-in rules do not recognize. It
// reports false when it has no opinion on x
type Converter func(x any) (Value, bool)

var (
	valueType     = reflect.TypeFor[Value]()
	bigIntType    = reflect.TypeFor[big.Int]()
	publicKeyLike = reflect.TypeFor[PublicKeyLike]()
	keypairLike   = reflect.TypeFor[KeypairLike]()
)

// Encode converts a native Go value into its wire Value. Rules are applied in
// a fixed order: existing Values pass through, then scalars, big integers,
// byte sequences (32 bytes become public keys and 64 bytes signatures), key
// capable types, the optional Converter, sequences, and finally keyed
// structures. 64-bit integer kinds become I64 or U64 so they decode without
// loss; narrower integers and floats become decimals. Elements and fields
// that cannot be encoded are dropped from their container
func Encode(x any, conv Converter) (Value, error) {
	if x == nil {
		return Null(), nil
	}
	return encodeReflect(reflect.ValueOf(x), conv)
}

func encodeReflect(rv reflect.Value, conv Converter) (Value, error) {
	if !rv.IsValid() {
		return Null(), nil
	}

	if res, ok := asValue(rv); ok {
		return res, nil
	}

	switch rv.Kind() {
	case reflect.Int, reflect.Int64:
		return Value{kind: KindI64, text: strconv.FormatInt(rv.Int(), 10)}, nil
	case reflect.Uint, reflect.Uint64, reflect.Uintptr:
		return Value{kind: KindU64, text: strconv.FormatUint(rv.Uint(), 10)},
			nil
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return Value{kind: KindDecimal, text: strconv.FormatInt(rv.Int(), 10)},
			nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return Value{
			kind: KindDecimal, text: strconv.FormatUint(rv.Uint(), 10),
		}, nil
	case reflect.Float32, reflect.Float64:
		return DecimalFromFloat(rv.Float())
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
	}

	if i, ok := asBigInt(rv); ok {
		return I128(i)
	}

	if raw, ok := asBytes(rv); ok {
		switch len(raw) {
		case PublicKeySize:
			return Value{kind: KindPublicKey, raw: raw}, nil
		case SignatureSize:
			return Value{kind: KindSignature, raw: raw}, nil
		default:
			return Value{kind: KindBytes, raw: raw}, nil
		}
	}

	if rv.Type().Implements(publicKeyLike) {
		k := rv.Interface().(PublicKeyLike).ToPublicKey()
		return PublicKeyValue(k), nil
	}

	if rv.Type().Implements(keypairLike) {
		k := rv.Interface().(KeypairLike).ToKeypair()
		return KeypairValue(k), nil
	}

	if conv != nil && rv.CanInterface() {
		if res, ok := conv(rv.Interface()); ok && res.IsValid() {
			return res, nil
		}
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return encodeReflect(rv.Elem(), conv)
	case reflect.Slice, reflect.Array:
		return encodeSequence(rv, conv), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, fmt.Errorf("%w: map key %s",
				ErrUnencodable, rv.Type().Key())
		}
		return encodeMap(rv, conv), nil
	case reflect.Struct:
		return encodeStruct(rv, conv), nil
	default:
		return Value{}, fmt.Errorf("%w: %s", ErrUnencodable, rv.Type())
	}
}

func asValue(rv reflect.Value) (Value, bool) {
	switch {
	case rv.Type() == valueType:
		return rv.Interface().(Value), true
	case rv.Kind() == reflect.Pointer && rv.Type().Elem() == valueType:
		if rv.IsNil() {
			return Null(), true
		}
		return rv.Elem().Interface().(Value), true
	default:
		return Value{}, false
	}
}

func asBigInt(rv reflect.Value) (*big.Int, bool) {
	switch {
	case rv.Type() == bigIntType:
		i := rv.Interface().(big.Int)
		return &i, true
	case rv.Kind() == reflect.Pointer && rv.Type().Elem() == bigIntType:
		return rv.Interface().(*big.Int), true
	default:
		return nil, false
	}
}

func asBytes(rv reflect.Value) ([]byte, bool) {
	switch rv.Kind() {
	case reflect.Slice:
		if rv.Type().Elem().Kind() != reflect.Uint8 {
			return nil, false
		}
	case reflect.Array:
		if rv.Type().Elem().Kind() != reflect.Uint8 {
			return nil, false
		}
		if rv.Type().Implements(publicKeyLike) ||
			rv.Type().Implements(keypairLike) {
			return nil, false
		}
	default:
		return nil, false
	}
	res := make([]byte, rv.Len())
	for i := range res {
		res[i] = byte(rv.Index(i).Uint())
	}
	return res, true
}

func encodeSequence(rv reflect.Value, conv Converter) Value {
	arr := make([]Value, 0, rv.Len())
	for i := range rv.Len() {
		elem, err := encodeReflect(rv.Index(i), conv)
		if err != nil {
			continue
		}
		arr = append(arr, elem)
	}
	return Value{kind: KindArray, arr: arr}
}

func encodeMap(rv reflect.Value, conv Converter) Value {
	obj := make(map[string]Value, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		field, err := encodeReflect(iter.Value(), conv)
		if err != nil {
			continue
		}
		obj[iter.Key().String()] = field
	}
	return Value{kind: KindMap, obj: obj}
}

func encodeStruct(rv reflect.Value, conv Converter) Value {
	typ := rv.Type()
	obj := make(map[string]Value, typ.NumField())
	for i := range typ.NumField() {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, omitEmpty, skip := fieldName(sf)
		if skip {
			continue
		}
		fv := rv.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}
		field, err := encodeReflect(fv, conv)
		if err != nil {
			continue
		}
		obj[name] = field
	}
	return Value{kind: KindMap, obj: obj}
}

func fieldName(sf reflect.StructField) (string, bool, bool) {
	tag, ok := sf.Tag.Lookup("json")
	if !ok {
		return sf.Name, false, false
	}
	if tag == "-" {
		return "", false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = sf.Name
	}
	return name, strings.Contains(opts, "omitempty"), false
}
