package value

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
)

var tagKinds = func() map[string]Kind {
	res := make(map[string]Kind, len(kindTags))
	for k, tag := range kindTags {
		if tag != "" {
			res[tag] = Kind(k)
		}
	}
	return res
}()

var nullJSON = []byte("null")

// MarshalJSON renders the Value as a single-key object keyed by its tag
func (v Value) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.kind {
	case KindString, KindDecimal, KindI64, KindU64, KindI128, KindU128,
		KindFloat:
		payload = v.text
	case KindBool:
		payload = v.flag
	case KindNull:
		payload = 0
	case KindPublicKey, KindSignature:
		payload = base58.Encode(v.raw)
	case KindBytes:
		payload = base64.StdEncoding.EncodeToString(v.raw)
	case KindArray:
		payload = v.arr
	case KindMap:
		payload = v.obj
	default:
		return nil, ErrInvalidValue
	}
	return json.Marshal(map[string]any{v.kind.Tag(): payload})
}

// UnmarshalJSON parses the wire form. Exactly one recognized tag must be
// populated; null-valued tags count as absent. A JSON null leaves the Value
// untouched
func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), nullJSON) {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	var kind Kind
	var payload json.RawMessage
	for tag, raw := range fields {
		k, ok := tagKinds[tag]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), nullJSON) {
			continue
		}
		if kind != KindInvalid {
			return fmt.Errorf("%w: multiple tags %s and %s",
				ErrInvalidValue, kind, k)
		}
		kind, payload = k, raw
	}
	if kind == KindInvalid {
		return ErrInvalidValue
	}

	res, err := fromWire(kind, payload)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidValue, kind, err)
	}
	*v = res
	return nil
}

func fromWire(kind Kind, payload json.RawMessage) (Value, error) {
	switch kind {
	case KindBool:
		var b bool
		if err := json.Unmarshal(payload, &b); err != nil {
			return Value{}, err
		}
		return Bool(b), nil

	case KindNull:
		return Null(), nil

	case KindArray:
		var arr []Value
		if err := json.Unmarshal(payload, &arr); err != nil {
			return Value{}, err
		}
		for i, elem := range arr {
			if !elem.IsValid() {
				return Value{}, fmt.Errorf("%w: element %d", ErrNullElement, i)
			}
		}
		return Array(arr...), nil

	case KindMap:
		var obj map[string]Value
		if err := json.Unmarshal(payload, &obj); err != nil {
			return Value{}, err
		}
		for k, field := range obj {
			if !field.IsValid() {
				return Value{}, fmt.Errorf("%w: field %q", ErrNullElement, k)
			}
		}
		return Map(obj), nil
	}

	var text string
	if err := json.Unmarshal(payload, &text); err != nil {
		return Value{}, err
	}

	switch kind {
	case KindString:
		return String(text), nil
	case KindDecimal:
		return Decimal(text)
	case KindFloat:
		if !isDecimal(text) && !isSpecialFloat(text) {
			return Value{}, fmt.Errorf("%w: %q", ErrInvalidNumber, text)
		}
		return Value{kind: KindFloat, text: text}, nil
	case KindI64:
		return I64(text)
	case KindU64:
		return U64(text)
	case KindI128:
		return I128(text)
	case KindU128:
		return U128(text)
	case KindPublicKey:
		k, err := ParsePublicKey(text)
		if err != nil {
			return Value{}, err
		}
		return PublicKeyValue(k), nil
	case KindSignature:
		s, err := ParseSignature(text)
		if err != nil {
			return Value{}, err
		}
		return SignatureValue(s), nil
	case KindBytes:
		raw, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return Value{}, err
		}
		return Bytes(raw), nil
	default:
		return Value{}, ErrInvalidValue
	}
}

func isSpecialFloat(text string) bool {
	switch text {
	case "NaN", "+Inf", "-Inf", "Inf", "inf", "-inf", "infinity",
		"-infinity":
		return true
	default:
		return false
	}
}
