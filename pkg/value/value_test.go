package value_test

import (
	"encoding/json"
	"math"
	"math/big"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/space-operator/spo-go/pkg/value"
)

type (
	poseAction struct {
		Type  string      `json:"type"`
		Value value.Value `json:"value"`
	}

	poseInputs struct {
		MintAccount string     `json:"mint_account"`
		Action      poseAction `json:"action"`
		internal    string
		Skipped     string `json:"-"`
		Empty       string `json:"empty,omitempty"`
	}

	customPoint struct{ X, Y int }

	walletKey struct{ key value.PublicKey }
)

func (w walletKey) ToPublicKey() value.PublicKey {
	return w.key
}

func TestPrimitives(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{name: "nil", input: nil, expected: `{"N":0}`},
		{name: "zero", input: 0, expected: `{"I":"0"}`},
		{name: "int32", input: int32(-7), expected: `{"D":"-7"}`},
		{name: "uint16", input: uint16(7), expected: `{"D":"7"}`},
		{name: "min_int64", input: int64(math.MinInt64),
			expected: `{"I":"-9223372036854775808"}`},
		{name: "string", input: "Hello", expected: `{"S":"Hello"}`},
		{name: "false", input: false, expected: `{"B":false}`},
		{name: "float", input: 1.25, expected: `{"D":"1.25"}`},
		{name: "uint64", input: uint64(math.MaxUint64),
			expected: `{"U":"18446744073709551615"}`},
		{name: "nil_pointer", input: (*int)(nil), expected: `{"N":0}`},
		{name: "big_int", input: mustBig(t, "-9999999999999"),
			expected: `{"I1":"-9999999999999"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := value.Encode(tt.input, nil)
			require.NoError(t, err)
			data, err := json.Marshal(v)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(data))
		})
	}
}

func TestPoseFlowInputs(t *testing.T) {
	ten, err := value.U64(10)
	require.NoError(t, err)

	v, err := value.Encode(poseInputs{
		MintAccount: "FBnKXaHR4mKCrZwsvpUkSv8cBJkWzDMVLNCFXQcWGXsj",
		Action:      poseAction{Type: "SelectedPose", Value: ten},
		internal:    "hidden",
		Skipped:     "skipped",
	}, nil)
	require.NoError(t, err)

	var expected value.Value
	err = json.Unmarshal([]byte(`{
		"M": {
			"mint_account": {"S": "FBnKXaHR4mKCrZwsvpUkSv8cBJkWzDMVLNCFXQcWGXsj"},
			"action": {
				"M": {
					"type": {"S": "SelectedPose"},
					"value": {"U": "10"}
				}
			}
		}
	}`), &expected)
	require.NoError(t, err)
	assert.Equal(t, expected, v)
}

func TestPassthrough(t *testing.T) {
	n := value.Null()
	v, err := value.Encode(n, nil)
	assert.NoError(t, err)
	assert.Equal(t, n, v)

	v, err = value.Encode(&n, nil)
	assert.NoError(t, err)
	assert.Equal(t, n, v)
}

func TestBoundedConstructors(t *testing.T) {
	tests := []struct {
		name  string
		ctor  func(any) (value.Value, error)
		input any
		ok    bool
	}{
		{"u64_negative", value.U64, -1, false},
		{"u64_zero", value.U64, 0, true},
		{"u64_max", value.U64, "18446744073709551615", true},
		{"u64_overflow", value.U64, "18446744073709551616", false},
		{"i64_overflow", value.I64, "9223372036854775808", false},
		{"i64_max", value.I64, int64(9223372036854775807), true},
		{"i64_min", value.I64, "-9223372036854775808", true},
		{"i64_underflow", value.I64, "-9223372036854775809", false},
		{"u128_negative", value.U128, -1, false},
		{"u128_max", value.U128,
			"340282366920938463463374607431768211455", true},
		{"u128_overflow", value.U128,
			"340282366920938463463374607431768211456", false},
		{"i128_max", value.I128,
			"170141183460469231731687303715884105727", true},
		{"i128_overflow", value.I128,
			"170141183460469231731687303715884105728", false},
		{"i128_min", value.I128,
			"-170141183460469231731687303715884105728", true},
		{"i128_underflow", value.I128,
			"-170141183460469231731687303715884105729", false},
		{"big_int_input", value.U128, mustBig(t, "12345678901234567890"),
			true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.ctor(tt.input)
			if tt.ok {
				assert.NoError(t, err)
				assert.True(t, v.IsValid())
				return
			}
			assert.ErrorIs(t, err, value.ErrOutOfRange)
			assert.Contains(t, err.Error(), "value out of range")
			assert.False(t, v.IsValid())
		})
	}
}

func TestBoundedPreservesPrecision(t *testing.T) {
	v, err := value.U128("340282366920938463463374607431768211455")
	require.NoError(t, err)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"U1":"340282366920938463463374607431768211455"}`, string(data),
	)

	var back value.Value
	require.NoError(t, json.Unmarshal(data, &back))
	decoded, err := value.Decode(back)
	require.NoError(t, err)
	i, ok := decoded.(*big.Int)
	require.True(t, ok)
	assert.Equal(t, "340282366920938463463374607431768211455", i.String())
}

func TestByteLengths(t *testing.T) {
	key := make([]byte, 32)
	sig := make([]byte, 64)
	other := []byte("hello")
	for i := range sig {
		sig[i] = byte(i)
	}
	for i := range key {
		key[i] = byte(i + 1)
	}

	v, err := value.Encode(key, nil)
	require.NoError(t, err)
	assert.Equal(t, value.KindPublicKey, v.Kind())
	text, _ := v.Text()
	assert.Equal(t, base58.Encode(key), text)

	v, err = value.Encode(sig, nil)
	require.NoError(t, err)
	assert.Equal(t, value.KindSignature, v.Kind())

	v, err = value.Encode(other, nil)
	require.NoError(t, err)
	assert.Equal(t, value.KindBytes, v.Kind())
	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"BY":"aGVsbG8="}`, string(data))
}

func TestKeyCapableTypes(t *testing.T) {
	var pk value.PublicKey
	pk[0] = 7

	v, err := value.Encode(walletKey{key: pk}, nil)
	require.NoError(t, err)
	got, ok := v.PublicKey()
	assert.True(t, ok)
	assert.Equal(t, pk, got)

	kp := value.Keypair{Public: pk}
	kp.Seed[31] = 9
	v, err = value.Encode(kp, nil)
	require.NoError(t, err)
	assert.Equal(t, value.KindSignature, v.Kind())
	raw, _ := v.Bytes()
	assert.Equal(t, kp.Bytes(), raw)
	assert.Equal(t, byte(9), raw[31])
	assert.Equal(t, byte(7), raw[32])
}

func TestConverter(t *testing.T) {
	conv := func(x any) (value.Value, bool) {
		if p, ok := x.(customPoint); ok {
			return value.String(
				string(rune('0'+p.X)) + "," + string(rune('0'+p.Y)),
			), true
		}
		return value.Value{}, false
	}

	v, err := value.Encode([]any{customPoint{X: 1, Y: 2}, "x"}, conv)
	require.NoError(t, err)
	elems, ok := v.Array()
	require.True(t, ok)
	require.Len(t, elems, 2)
	text, _ := elems[0].Text()
	assert.Equal(t, "1,2", text)

	v, err = value.Encode(customPoint{X: 1, Y: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, value.KindMap, v.Kind())
}

func TestUnencodableDropped(t *testing.T) {
	v, err := value.Encode([]any{1, func() {}, "a", make(chan int)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Len())

	v, err = value.Encode(map[string]any{
		"keep": true,
		"drop": func() {},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Len())
	_, ok := v.Get("keep")
	assert.True(t, ok)

	_, err = value.Encode(func() {}, nil)
	assert.ErrorIs(t, err, value.ErrUnencodable)

	_, err = value.Encode(map[int]string{1: "a"}, nil)
	assert.ErrorIs(t, err, value.ErrUnencodable)
}

func TestRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	key[3] = 3
	sig := make([]byte, 64)
	sig[63] = 63

	tests := []struct {
		name     string
		input    any
		expected any
	}{
		{"string", "hello", "hello"},
		{"bool", true, true},
		{"null", nil, nil},
		{"int", 42, big.NewInt(42)},
		{"int32", int32(42), float64(42)},
		{"max_uint64", uint64(math.MaxUint64),
			new(big.Int).SetUint64(math.MaxUint64)},
		{"max_int64", int64(math.MaxInt64), big.NewInt(math.MaxInt64)},
		{"min_int64", int64(math.MinInt64), big.NewInt(math.MinInt64)},
		{"beyond_float", int64(9007199254740993),
			big.NewInt(9007199254740993)},
		{"float", 1.5, 1.5},
		{"public_key", key, key},
		{"signature", sig, sig},
		{"bytes", []byte{1, 2, 3}, []byte{1, 2, 3}},
		{"empty_bytes", []byte{}, []byte{}},
		{"nested", map[string]any{
			"a": []any{"x", true},
			"b": map[string]any{"c": nil},
		}, map[string]any{
			"a": []any{"x", true},
			"b": map[string]any{"c": nil},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := value.Encode(tt.input, nil)
			require.NoError(t, err)

			data, err := json.Marshal(v)
			require.NoError(t, err)
			var wire value.Value
			require.NoError(t, json.Unmarshal(data, &wire))

			got, err := value.Decode(wire)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRoundTripBigIntegers(t *testing.T) {
	n := mustBig(t, "-170141183460469231731687303715884105728")
	v, err := value.Encode(n, nil)
	require.NoError(t, err)
	assert.Equal(t, value.KindI128, v.Kind())

	got, err := value.Decode(v)
	require.NoError(t, err)
	assert.Equal(t, 0, n.Cmp(got.(*big.Int)))

	_, err = value.Encode(mustBig(t, "170141183460469231731687303715884105728"),
		nil)
	assert.ErrorIs(t, err, value.ErrOutOfRange)
}

func TestSingleTag(t *testing.T) {
	values := []value.Value{
		value.String("s"), value.Null(), value.Bool(true),
		value.Float(2.5), value.Bytes([]byte{1}),
		value.Array(value.Null()),
		value.Map(map[string]value.Value{"a": value.Null()}),
		value.PublicKeyValue(value.PublicKey{1}),
		value.SignatureValue(value.Signature{2}),
	}
	for _, v := range values {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		var fields map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(data, &fields))
		assert.Len(t, fields, 1)
		_, ok := fields[v.Tag()]
		assert.True(t, ok)
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"empty", `{}`},
		{"unknown_tag", `{"X":"1"}`},
		{"multiple_tags", `{"S":"a","D":"1"}`},
		{"null_only", `{"S":null}`},
		{"not_object", `"text"`},
		{"u64_range", `{"U":"-1"}`},
		{"short_key", `{"B3":"abc"}`},
		{"bad_base64", `{"BY":"!!"}`},
		{"bad_decimal", `{"D":"ten"}`},
		{"nested_invalid", `{"A":[{"S":"ok"},{}]}`},
		{"null_element", `{"A":[null,{"S":"x"}]}`},
		{"null_field", `{"M":{"k":null}}`},
		{"nested_null", `{"M":{"a":{"A":[null]}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v value.Value
			err := json.Unmarshal([]byte(tt.json), &v)
			assert.ErrorIs(t, err, value.ErrInvalidValue)
		})
	}
}

func TestDecodeInvalid(t *testing.T) {
	_, err := value.Decode(value.Value{})
	assert.ErrorIs(t, err, value.ErrInvalidValue)
	assert.EqualError(t, err, "invalid value")

	_, err = json.Marshal(value.Value{})
	assert.Error(t, err)
}

func TestImmutable(t *testing.T) {
	raw := []byte{1, 2, 3}
	v := value.Bytes(raw)
	raw[0] = 9

	got, _ := v.Bytes()
	assert.Equal(t, []byte{1, 2, 3}, got)

	got[1] = 9
	again, _ := v.Bytes()
	assert.Equal(t, []byte{1, 2, 3}, again)

	fields := map[string]value.Value{"a": value.Null()}
	m := value.Map(fields)
	fields["b"] = value.Null()
	assert.Equal(t, 1, m.Len())
}

func TestParsePublicKey(t *testing.T) {
	pk := value.PublicKey{1, 2, 3}
	got, err := value.ParsePublicKey(pk.String())
	assert.NoError(t, err)
	assert.Equal(t, pk, got)

	_, err = value.ParsePublicKey(base58.Encode([]byte{1, 2}))
	assert.ErrorIs(t, err, value.ErrInvalidPublicKey)

	_, err = value.ParsePublicKey("0OIl")
	assert.ErrorIs(t, err, value.ErrInvalidPublicKey)
}

func TestDecimal(t *testing.T) {
	v, err := value.Decimal("12345678901234567890.123456789")
	assert.NoError(t, err)
	text, _ := v.Text()
	assert.Equal(t, "12345678901234567890.123456789", text)

	for _, text := range []string{"-1.5", ".5", "1e+21", "2E-3", "+7"} {
		v, err = value.Decimal(text)
		require.NoError(t, err, text)
		_, err = value.Decode(v)
		assert.NoError(t, err, text)
	}

	for _, text := range []string{"1/2", "0x1F", "1_000", "", " 1", "1.2.3",
		"e5", "Inf"} {
		_, err = value.Decimal(text)
		assert.ErrorIs(t, err, value.ErrInvalidNumber, text)
	}

	var w value.Value
	err = json.Unmarshal([]byte(`{"D":"0x1F"}`), &w)
	assert.ErrorIs(t, err, value.ErrInvalidValue)

	_, err = value.Encode(nanValue(), nil)
	assert.ErrorIs(t, err, value.ErrInvalidNumber)
}

func nanValue() float64 {
	zero := 0.0
	return zero / zero
}

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	i, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok)
	return i
}
