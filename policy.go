package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// Policy is the bot inference network: a dense 20→128→3 net with a ReLU
// hidden layer, matching the exported training weights. It is loaded once
// at startup, read-only afterwards, and safely shared by every room.
type Policy struct {
	W1 [][]float64 `json:"w1"` // hidden x input
	B1 []float64   `json:"b1"`
	W2 [][]float64 `json:"w2"` // output x hidden
	B2 []float64   `json:"b2"`
}

// LoadPolicy reads weights from a JSON file and validates the shapes.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	var p Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Policy) validate() error {
	if len(p.W1) != PolicyHiddenSize || len(p.B1) != PolicyHiddenSize {
		return fmt.Errorf("policy: hidden layer is %dx%d, want %d", len(p.W1), len(p.B1), PolicyHiddenSize)
	}
	for i, row := range p.W1 {
		if len(row) != PolicyInputSize {
			return fmt.Errorf("policy: w1 row %d has %d inputs, want %d", i, len(row), PolicyInputSize)
		}
	}
	if len(p.W2) != PolicyOutputSize || len(p.B2) != PolicyOutputSize {
		return fmt.Errorf("policy: output layer is %dx%d, want %d", len(p.W2), len(p.B2), PolicyOutputSize)
	}
	for i, row := range p.W2 {
		if len(row) != PolicyHiddenSize {
			return fmt.Errorf("policy: w2 row %d has %d inputs, want %d", i, len(row), PolicyHiddenSize)
		}
	}
	return nil
}

// Predict runs a forward pass and returns the argmax action:
// 0 = straight, 1 = right turn, 2 = left turn.
func (p *Policy) Predict(features []float64) int {
	hidden := make([]float64, PolicyHiddenSize)
	for i, row := range p.W1 {
		sum := p.B1[i]
		for j, w := range row {
			sum += w * features[j]
		}
		if sum > 0 { // ReLU
			hidden[i] = sum
		}
	}

	best, bestScore := 0, 0.0
	for i, row := range p.W2 {
		sum := p.B2[i]
		for j, w := range row {
			sum += w * hidden[j]
		}
		if i == 0 || sum > bestScore {
			best, bestScore = i, sum
		}
	}
	return best
}
