package value

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
)

type (
	// Value is the self-describing wire representation of all data exchanged
	// with the service. Exactly one variant is active in every constructed
	// Value and the contents never change after construction. The zero Value
	// carries no variant and is rejected by Decode and MarshalJSON
	Value struct {
		raw  []byte
		arr  []Value
		obj  map[string]Value
		text string
		flag bool
		kind Kind
	}

	// Kind identifies the active variant of a Value
	Kind uint8
)

const (
	KindInvalid Kind = iota
	KindString
	KindDecimal
	KindI64
	KindU64
	KindI128
	KindU128
	KindFloat
	KindBool
	KindNull
	KindPublicKey
	KindSignature
	KindBytes
	KindArray
	KindMap
)

var (
	ErrOutOfRange    = errors.New("value out of range")
	ErrInvalidValue  = errors.New("invalid value")
	ErrInvalidNumber = errors.New("invalid number")
	ErrUnencodable   = errors.New("value cannot be encoded")
	ErrNullElement   = errors.New("container holds a null element")
)

var kindTags = [...]string{
	KindInvalid:   "",
	KindString:    "S",
	KindDecimal:   "D",
	KindI64:       "I",
	KindU64:       "U",
	KindI128:      "I1",
	KindU128:      "U1",
	KindFloat:     "F",
	KindBool:      "B",
	KindNull:      "N",
	KindPublicKey: "B3",
	KindSignature: "B6",
	KindBytes:     "BY",
	KindArray:     "A",
	KindMap:       "M",
}

var (
	minI64  = new(big.Int).Neg(pow2(63))
	maxI64  = new(big.Int).Sub(pow2(63), big.NewInt(1))
	maxU64  = new(big.Int).Sub(pow2(64), big.NewInt(1))
	minI128 = new(big.Int).Neg(pow2(127))
	maxI128 = new(big.Int).Sub(pow2(127), big.NewInt(1))
	maxU128 = new(big.Int).Sub(pow2(128), big.NewInt(1))
	zero    = big.NewInt(0)
)

// Tag returns the wire tag for the Kind
func (k Kind) Tag() string {
	if int(k) < len(kindTags) {
		return kindTags[k]
	}
	return ""
}

// String returns the wire tag, or "invalid" for an unknown Kind
func (k Kind) String() string {
	if tag := k.Tag(); tag != "" {
		return tag
	}
	return "invalid"
}

// String constructs a text Value
func String(s string) Value {
	return Value{kind: KindString, text: s}
}

// Decimal constructs an arbitrary-precision decimal Value from its text
// representation
func Decimal(text string) (Value, error) {
	if !isDecimal(text) {
		return Value{}, fmt.Errorf("%w: %q", ErrInvalidNumber, text)
	}
	return Value{kind: KindDecimal, text: text}, nil
}

// DecimalFromFloat constructs a decimal Value from a float64 using its
// shortest exact text form
func DecimalFromFloat(f float64) (Value, error) {
	return Decimal(strconv.FormatFloat(f, 'g', -1, 64))
}

// Float constructs a floating point Value
func Float(f float64) Value {
	return Value{kind: KindFloat, text: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Bool constructs a boolean Value
func Bool(b bool) Value {
	return Value{kind: KindBool, flag: b}
}

// Null constructs the null Value
func Null() Value {
	return Value{kind: KindNull}
}

// U64 constructs an unsigned 64-bit integer Value. The argument may be any
// integer type, a *big.Int, or decimal text
func U64(x any) (Value, error) {
	return bounded(KindU64, x, zero, maxU64)
}

// I64 constructs a signed 64-bit integer Value
func I64(x any) (Value, error) {
	return bounded(KindI64, x, minI64, maxI64)
}

// U128 constructs an unsigned 128-bit integer Value
func U128(x any) (Value, error) {
	return bounded(KindU128, x, zero, maxU128)
}

// I128 constructs a signed 128-bit integer Value
func I128(x any) (Value, error) {
	return bounded(KindI128, x, minI128, maxI128)
}

// PublicKeyValue constructs a public key Value
func PublicKeyValue(k PublicKey) Value {
	return Value{kind: KindPublicKey, raw: cloneBytes(k[:])}
}

// SignatureValue constructs a signature Value
func SignatureValue(s Signature) Value {
	return Value{kind: KindSignature, raw: cloneBytes(s[:])}
}

// KeypairValue constructs a signature-tagged Value carrying seed and public
// key
func KeypairValue(k Keypair) Value {
	return Value{kind: KindSignature, raw: k.Bytes()}
}

// Bytes constructs a raw byte Value regardless of length
func Bytes(b []byte) Value {
	return Value{kind: KindBytes, raw: cloneBytes(b)}
}

// Array constructs an ordered sequence Value
func Array(elems ...Value) Value {
	arr := make([]Value, len(elems))
	copy(arr, elems)
	return Value{kind: KindArray, arr: arr}
}

// Map constructs a keyed Value
func Map(fields map[string]Value) Value {
	obj := make(map[string]Value, len(fields))
	for k, v := range fields {
		obj[k] = v
	}
	return Value{kind: KindMap, obj: obj}
}

// Kind returns the active variant
func (v Value) Kind() Kind {
	return v.kind
}

// Tag returns the wire tag of the active variant
func (v Value) Tag() string {
	return v.kind.Tag()
}

// IsValid reports whether the Value carries a variant
func (v Value) IsValid() bool {
	return v.kind != KindInvalid
}

// IsNull reports whether the Value is the null variant
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Text returns the wire text of string, numeric, and key variants
func (v Value) Text() (string, bool) {
	switch v.kind {
	case KindString, KindDecimal, KindI64, KindU64, KindI128, KindU128,
		KindFloat:
		return v.text, true
	case KindPublicKey, KindSignature:
		return base58.Encode(v.raw), true
	case KindBytes:
		return base64.StdEncoding.EncodeToString(v.raw), true
	default:
		return "", false
	}
}

// Bool returns the boolean variant
func (v Value) Bool() (bool, bool) {
	return v.flag, v.kind == KindBool
}

// Bytes returns a copy of the raw bytes held by key, signature, and byte
// variants
func (v Value) Bytes() ([]byte, bool) {
	switch v.kind {
	case KindPublicKey, KindSignature, KindBytes:
		return cloneBytes(v.raw), true
	default:
		return nil, false
	}
}

// PublicKey returns the public key variant
func (v Value) PublicKey() (PublicKey, bool) {
	var res PublicKey
	if v.kind != KindPublicKey {
		return res, false
	}
	copy(res[:], v.raw)
	return res, true
}

// Signature returns the signature variant
func (v Value) Signature() (Signature, bool) {
	var res Signature
	if v.kind != KindSignature {
		return res, false
	}
	copy(res[:], v.raw)
	return res, true
}

// BigInt returns the integer variants as an arbitrary-precision integer
func (v Value) BigInt() (*big.Int, bool) {
	switch v.kind {
	case KindI64, KindU64, KindI128, KindU128:
		res, ok := new(big.Int).SetString(v.text, 10)
		return res, ok
	default:
		return nil, false
	}
}

// Float64 returns decimal and float variants as a float64
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindDecimal, KindFloat:
		f, err := strconv.ParseFloat(v.text, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Array returns a copy of the elements of the array variant
func (v Value) Array() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	res := make([]Value, len(v.arr))
	copy(res, v.arr)
	return res, true
}

// Map returns a copy of the fields of the map variant
func (v Value) Map() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	res := make(map[string]Value, len(v.obj))
	for k, f := range v.obj {
		res[k] = f
	}
	return res, true
}

// Get returns a field of the map variant
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	res, ok := v.obj[key]
	return res, ok
}

// Len returns the number of elements or fields of container variants
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindMap:
		return len(v.obj)
	default:
		return 0
	}
}

// String renders the Value in its wire form
func (v Value) String() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return "<invalid value>"
	}
	return string(data)
}

func bounded(kind Kind, x any, lo, hi *big.Int) (Value, error) {
	i, err := toBigInt(x)
	if err != nil {
		return Value{}, err
	}
	if i.Cmp(lo) < 0 || i.Cmp(hi) > 0 {
		return Value{}, fmt.Errorf("%w: %s %s", ErrOutOfRange, kind, i)
	}
	return Value{kind: kind, text: i.String()}, nil
}

func toBigInt(x any) (*big.Int, error) {
	switch x := x.(type) {
	case int:
		return big.NewInt(int64(x)), nil
	case int8:
		return big.NewInt(int64(x)), nil
	case int16:
		return big.NewInt(int64(x)), nil
	case int32:
		return big.NewInt(int64(x)), nil
	case int64:
		return big.NewInt(x), nil
	case uint:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	case *big.Int:
		if x == nil {
			return nil, ErrInvalidNumber
		}
		return new(big.Int).Set(x), nil
	case big.Int:
		return new(big.Int).Set(&x), nil
	case string:
		res, ok := new(big.Int).SetString(strings.TrimSpace(x), 10)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, x)
		}
		return res, nil
	case float64:
		return floatToBigInt(x)
	case float32:
		return floatToBigInt(float64(x))
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidNumber, x)
	}
}

func floatToBigInt(f float64) (*big.Int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNumber, f)
	}
	res, _ := big.NewFloat(f).Int(nil)
	return res, nil
}

var decimalSyntax = regexp.MustCompile(
	`^[+-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)([eE][+-]?[0-9]+)?$`,
)

func isDecimal(text string) bool {
	return decimalSyntax.MatchString(text)
}

func cloneBytes(b []byte) []byte {
	res := make([]byte, len(b))
	copy(res, b)
	return res
}

func pow2(n uint) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), n)
}
