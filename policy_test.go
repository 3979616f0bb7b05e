package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicyFile(t *testing.T, p *Policy) string {
	t.Helper()
	data, err := json.Marshal(p)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadPolicyRoundTrip(t *testing.T) {
	p := zeroPolicy()
	p.W1[0][0] = 0.5
	p.B2[1] = -0.25

	loaded, err := LoadPolicy(writePolicyFile(t, p))
	require.NoError(t, err)
	assert.Equal(t, 0.5, loaded.W1[0][0])
	assert.Equal(t, -0.25, loaded.B2[1])
}

func TestLoadPolicyMissingFile(t *testing.T) {
	_, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadPolicyBadShapes(t *testing.T) {
	p := zeroPolicy()
	p.W1 = p.W1[:10]
	_, err := LoadPolicy(writePolicyFile(t, p))
	assert.ErrorContains(t, err, "hidden layer")

	p = zeroPolicy()
	p.W1[3] = p.W1[3][:5]
	_, err = LoadPolicy(writePolicyFile(t, p))
	assert.ErrorContains(t, err, "w1 row 3")

	p = zeroPolicy()
	p.B2 = append(p.B2, 0)
	_, err = LoadPolicy(writePolicyFile(t, p))
	assert.ErrorContains(t, err, "output layer")

	p = zeroPolicy()
	p.W2[1] = p.W2[1][:7]
	_, err = LoadPolicy(writePolicyFile(t, p))
	assert.ErrorContains(t, err, "w2 row 1")
}

func TestPredictArgmax(t *testing.T) {
	for action := 0; action < PolicyOutputSize; action++ {
		p := constPolicy(action)
		got := p.Predict(make([]float64, PolicyInputSize))
		assert.Equal(t, action, got)
	}
}

func TestPredictReLU(t *testing.T) {
	// Route feature 0 through hidden unit 0 into action 1, with action 2 as
	// the constant fallback. The hidden unit only fires when the feature does.
	p := zeroPolicy()
	p.W1[0][0] = 1
	p.W2[1][0] = 2
	p.B2[2] = 1

	features := make([]float64, PolicyInputSize)
	assert.Equal(t, 2, p.Predict(features), "zero input leaves only the bias")

	features[0] = 1
	assert.Equal(t, 1, p.Predict(features), "active feature dominates the bias")

	// A negative pre-activation is clamped to zero, not passed through.
	p.W1[0][0] = -1
	assert.Equal(t, 2, p.Predict(features))
}
