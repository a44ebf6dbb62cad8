// Package value implements the tagged wire format used for all data exchanged
// with the flow service
//
// A Value holds exactly one variant: text, arbitrary-precision decimals,
// bounded 64 and 128-bit integers, floats, booleans, null, public keys,
// signatures, raw bytes, arrays, or maps. Integers are carried as decimal
// text so their precision survives any JSON transport, and key material is
// carried as base58 text
package value
