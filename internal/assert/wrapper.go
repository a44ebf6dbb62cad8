package assert

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/space-operator/spo-go/internal/config"
	"github.com/space-operator/spo-go/pkg/value"
)

// Wrapper wraps testify assertions with client-specific helpers
type Wrapper struct {
	*testing.T
	*assert.Assertions
}

// New creates a new test assertion wrapper
func New(t *testing.T) *Wrapper {
	return &Wrapper{
		T:          t,
		Assertions: assert.New(t),
	}
}

// ConfigValid asserts that a configuration is valid
func (w *Wrapper) ConfigValid(cfg *config.Config) {
	w.Helper()
	w.NoError(cfg.Validate())
	w.True(cfg.RequestTimeout > 0)
	w.True(cfg.ShutdownTimeout > 0)
}

// ConfigInvalid asserts that a configuration fails validation with target
func (w *Wrapper) ConfigInvalid(cfg *config.Config, target error) {
	w.Helper()
	err := cfg.Validate()
	w.Error(err)
	w.ErrorIs(err, target)
}

// WireJSON asserts that v marshals to the expected wire JSON and that the
// wire form decodes back to an equivalent Value
func (w *Wrapper) WireJSON(v value.Value, expected string) {
	w.Helper()
	data, err := json.Marshal(v)
	if !w.NoError(err) {
		return
	}
	w.JSONEq(expected, string(data))

	var back value.Value
	if w.NoError(json.Unmarshal(data, &back)) {
		w.Equal(v.Kind(), back.Kind())
		w.Equal(v.String(), back.String())
	}
}

// ValueKind asserts the kind of v
func (w *Wrapper) ValueKind(v value.Value, expected value.Kind) {
	w.Helper()
	w.Equal(expected, v.Kind(), "value kind")
}
