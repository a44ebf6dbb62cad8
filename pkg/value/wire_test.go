package value_test

import (
	"testing"

	"github.com/mr-tron/base58"

	"github.com/space-operator/spo-go/internal/assert"
	"github.com/space-operator/spo-go/pkg/value"
)

func TestWireForms(t *testing.T) {
	as := assert.New(t)

	key := value.PublicKey{7}
	kp := value.Keypair{Seed: [value.SeedSize]byte{1}, Public: key}

	u, err := value.U128("340282366920938463463374607431768211455")
	as.NoError(err)
	i, err := value.I64(-5)
	as.NoError(err)

	as.WireJSON(value.String("hi"), `{"S":"hi"}`)
	as.WireJSON(value.Float(2.5), `{"F":"2.5"}`)
	as.WireJSON(value.Null(), `{"N":0}`)
	as.WireJSON(i, `{"I":"-5"}`)
	as.WireJSON(u, `{"U1":"340282366920938463463374607431768211455"}`)
	as.WireJSON(value.Bytes([]byte{1, 2}), `{"BY":"AQI="}`)
	as.WireJSON(value.PublicKeyValue(key), `{"B3":"`+key.String()+`"}`)
	as.WireJSON(value.KeypairValue(kp),
		`{"B6":"`+base58.Encode(kp.Bytes())+`"}`)
	as.WireJSON(value.Array(value.Bool(true)), `{"A":[{"B":true}]}`)
	as.WireJSON(value.Map(map[string]value.Value{"n": value.Null()}),
		`{"M":{"n":{"N":0}}}`)
}

func TestKeyCapableEncoding(t *testing.T) {
	as := assert.New(t)

	kp := value.Keypair{Seed: [value.SeedSize]byte{2}, Public: value.PublicKey{3}}
	v, err := value.Encode(kp, nil)
	as.NoError(err)
	as.ValueKind(v, value.KindSignature)

	v, err = value.Encode(walletKey{key: value.PublicKey{4}}, nil)
	as.NoError(err)
	as.ValueKind(v, value.KindPublicKey)
}
