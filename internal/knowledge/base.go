// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package knowledge

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// HealthyLabel is the label mapped to the fixed healthy entry.
const HealthyLabel = "Healthy"

//go:embed data/knowledge.yaml
var embeddedYAML []byte

// Entry is the advice for one disease.
type Entry struct {
	ScientificName string   `yaml:"scientific_name,omitempty" json:"scientificName,omitempty"`
	Symptoms       []string `yaml:"symptoms,omitempty" json:"symptoms"`
	Causes         []string `yaml:"causes,omitempty" json:"causes,omitempty"`
	Treatment      []string `yaml:"treatment,omitempty" json:"treatment"`
	Prevention     []string `yaml:"prevention,omitempty" json:"prevention"`
	SpreadRate     string   `yaml:"spread_rate,omitempty" json:"spreadRate,omitempty"`
	AffectedParts  []string `yaml:"affected_parts,omitempty" json:"affectedParts,omitempty"`
}

// Crop describes one supported crop.
type Crop struct {
	ID             string   `yaml:"-" json:"id"`
	Name           string   `yaml:"name" json:"name"`
	ScientificName string   `yaml:"scientific_name" json:"scientificName"`
	Diseases       []string `yaml:"diseases" json:"diseases"`
}

// document mirrors the YAML layout.
type document struct {
	Healthy      Entry                       `yaml:"healthy"`
	Fallback     Entry                       `yaml:"fallback"`
	Diseases     map[string]Entry            `yaml:"diseases"`
	Crops        map[string]Crop             `yaml:"crops"`
	CropDiseases map[string]map[string]Entry `yaml:"crop_diseases"`
}

// Base is a parsed knowledge base. It is never mutated after Parse returns
// and is safe for concurrent use.
type Base struct {
	healthy      Entry
	fallback     Entry
	diseases     map[string]Entry            // lower-case label
	crops        map[string]Crop             // lower-case crop id
	cropDiseases map[string]map[string]Entry // lower-case crop id, lower-case label
}

// Advice is the resolved result of the three lookups.
type Advice struct {
	Symptoms   []string
	Treatment  []string
	Prevention []string
	// Miss is true when no curated entry existed for the label and every
	// list came from the fallback.
	Miss bool
}

// ErrInvalid matches knowledge base validation failures.
var ErrInvalid = errors.New("invalid knowledge base")

// Embedded parses the knowledge base compiled into the binary.
func Embedded() (*Base, error) {
	return Parse(embeddedYAML)
}

// LoadFile parses a knowledge base from disk.
func LoadFile(path string) (*Base, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge base: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML knowledge base. Every crop profile gains
// a trailing "Healthy" label if it lacks one.
func Parse(data []byte) (*Base, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	for name, list := range map[string][]string{
		"healthy.symptoms":    doc.Healthy.Symptoms,
		"healthy.treatment":   doc.Healthy.Treatment,
		"healthy.prevention":  doc.Healthy.Prevention,
		"fallback.symptoms":   doc.Fallback.Symptoms,
		"fallback.treatment":  doc.Fallback.Treatment,
		"fallback.prevention": doc.Fallback.Prevention,
	} {
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: %s must not be empty", ErrInvalid, name)
		}
	}

	b := &Base{
		healthy:      doc.Healthy,
		fallback:     doc.Fallback,
		diseases:     make(map[string]Entry, len(doc.Diseases)),
		crops:        make(map[string]Crop, len(doc.Crops)),
		cropDiseases: make(map[string]map[string]Entry, len(doc.CropDiseases)),
	}
	for label, e := range doc.Diseases {
		b.diseases[key(label)] = e
	}
	for id, c := range doc.Crops {
		c.ID = key(id)
		if len(c.Diseases) == 0 {
			return nil, fmt.Errorf("%w: crop %q has no diseases", ErrInvalid, id)
		}
		if !containsFold(c.Diseases, HealthyLabel) {
			c.Diseases = append(c.Diseases, HealthyLabel)
		}
		if c.Name == "" {
			c.Name = id
		}
		b.crops[c.ID] = c
	}
	for id, entries := range doc.CropDiseases {
		m := make(map[string]Entry, len(entries))
		for label, e := range entries {
			m[key(label)] = e
		}
		b.cropDiseases[key(id)] = m
	}
	return b, nil
}

// Profile returns a copy of the ordered valid labels for crop.
func (b *Base) Profile(crop string) ([]string, bool) {
	c, ok := b.crops[key(crop)]
	if !ok {
		return nil, false
	}
	return append([]string(nil), c.Diseases...), true
}

// Crop returns the description of one crop.
func (b *Base) Crop(crop string) (Crop, bool) {
	c, ok := b.crops[key(crop)]
	if !ok {
		return Crop{}, false
	}
	c.Diseases = append([]string(nil), c.Diseases...)
	return c, true
}

// Crops returns every crop id in sorted order.
func (b *Base) Crops() []string {
	ids := make([]string, 0, len(b.crops))
	for id := range b.crops {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Symptoms resolves the symptom list for (crop, label).
func (b *Base) Symptoms(crop, label string) []string {
	return b.resolve(crop, label, func(e Entry) []string { return e.Symptoms })
}

// Treatment resolves the treatment list for (crop, label).
func (b *Base) Treatment(crop, label string) []string {
	return b.resolve(crop, label, func(e Entry) []string { return e.Treatment })
}

// Prevention resolves the prevention list for (crop, label).
func (b *Base) Prevention(crop, label string) []string {
	return b.resolve(crop, label, func(e Entry) []string { return e.Prevention })
}

// Advise runs all three lookups.
func (b *Base) Advise(crop, label string) Advice {
	_, curated := b.Entry(crop, label)
	return Advice{
		Symptoms:   b.Symptoms(crop, label),
		Treatment:  b.Treatment(crop, label),
		Prevention: b.Prevention(crop, label),
		Miss:       !curated,
	}
}

// Entry returns the most specific curated entry for (crop, label) and
// whether one exists. The healthy entry counts as curated.
func (b *Base) Entry(crop, label string) (Entry, bool) {
	if isHealthy(label) {
		return clone(b.healthy), true
	}
	if e, ok := b.cropDiseases[key(crop)][key(label)]; ok {
		return clone(e), true
	}
	if e, ok := b.diseases[key(label)]; ok {
		return clone(e), true
	}
	return Entry{}, false
}

func (b *Base) resolve(crop, label string, field func(Entry) []string) []string {
	if isHealthy(label) {
		return copyList(field(b.healthy))
	}
	if e, ok := b.cropDiseases[key(crop)][key(label)]; ok && len(field(e)) > 0 {
		return copyList(field(e))
	}
	if e, ok := b.diseases[key(label)]; ok && len(field(e)) > 0 {
		return copyList(field(e))
	}
	return copyList(field(b.fallback))
}

func isHealthy(label string) bool {
	return strings.EqualFold(strings.TrimSpace(label), HealthyLabel)
}

func key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func copyList(list []string) []string {
	return append([]string(nil), list...)
}

func clone(e Entry) Entry {
	e.Symptoms = copyList(e.Symptoms)
	e.Causes = copyList(e.Causes)
	e.Treatment = copyList(e.Treatment)
	e.Prevention = copyList(e.Prevention)
	e.AffectedParts = copyList(e.AffectedParts)
	return e
}
