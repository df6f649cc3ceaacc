// Package vignette provides the embedded patient vignette deck used by the
// consultation simulator endpoint.
package vignette

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	_ "embed"
)

//go:embed vignettes.json
var vignettesJSON []byte

// Vignette describes one simulated patient case.
type Vignette struct {
	Name           string   `json:"name"`
	ChiefComplaint string   `json:"chief_complaint"`
	Symptoms       []string `json:"symptoms"`
	History        string   `json:"history"`
}

// Deck is a loaded set of vignettes.
type Deck struct {
	vignettes []Vignette
}

// LoadDeck parses the embedded vignette data.
func LoadDeck() (*Deck, error) {
	var vs []Vignette
	if err := json.Unmarshal(vignettesJSON, &vs); err != nil {
		return nil, fmt.Errorf("parse vignettes: %w", err)
	}
	if len(vs) == 0 {
		return nil, fmt.Errorf("vignette deck is empty")
	}
	return &Deck{vignettes: vs}, nil
}

// Random picks one vignette.
func (d *Deck) Random() Vignette {
	return d.vignettes[rand.Intn(len(d.vignettes))]
}

// SymptomList renders the vignette's symptoms for prompt interpolation.
func (v Vignette) SymptomList() string {
	return strings.Join(v.Symptoms, ", ")
}
