// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package inference

import (
	"math"
	"strings"
)

// Symptom is a visual class a leaf pixel can fall into.
type Symptom int

const (
	SymptomHealthy   Symptom = iota // saturated green tissue
	SymptomChlorosis                // yellowing
	SymptomNecrosis                 // brown dead tissue
	SymptomLesion                   // dark spots
	SymptomPowder                   // white fungal growth
	SymptomRust                     // orange pustules
	symptomCount

	// SymptomNone marks background pixels that carry no leaf signal.
	SymptomNone Symptom = -1
)

var symptomNames = [symptomCount]string{"healthy", "chlorosis", "necrosis", "lesion", "powder", "rust"}

func (s Symptom) String() string {
	if s < 0 || s >= symptomCount {
		return "none"
	}
	return symptomNames[s]
}

// Features holds the share of leaf evidence per symptom. Shares sum to 1 when
// any leaf evidence was found and are all zero otherwise.
type Features [symptomCount]float64

// Lesioned returns the combined share of every non-healthy symptom.
func (f Features) Lesioned() float64 {
	sum := 0.0
	for s := SymptomChlorosis; s < symptomCount; s++ {
		sum += f[s]
	}
	return sum
}

// classifyPixel buckets an RGB pixel by hue, saturation and value.
func classifyPixel(r, g, b uint8) Symptom {
	h, s, v := hsv(r, g, b)
	switch {
	case v < 0.18:
		return SymptomLesion
	case s < 0.18 && v > 0.75:
		return SymptomPowder
	case s < 0.15:
		return SymptomNone
	case h >= 70 && h < 170:
		return SymptomHealthy
	case h >= 45 && h < 70:
		return SymptomChlorosis
	case h >= 15 && h < 45 && s > 0.5 && v > 0.55:
		return SymptomRust
	case h < 45 || h >= 330:
		if v < 0.3 {
			return SymptomLesion
		}
		return SymptomNecrosis
	default:
		return SymptomNone
	}
}

// hsv converts to hue in degrees and saturation/value in [0, 1].
func hsv(r, g, b uint8) (h, s, v float64) {
	rf, gf, bf := float64(r)/255, float64(g)/255, float64(b)/255
	maxC := math.Max(rf, math.Max(gf, bf))
	minC := math.Min(rf, math.Min(gf, bf))
	delta := maxC - minC

	v = maxC
	if maxC > 0 {
		s = delta / maxC
	}
	if delta == 0 {
		return 0, s, v
	}
	switch maxC {
	case rf:
		h = 60 * math.Mod((gf-bf)/delta, 6)
	case gf:
		h = 60 * ((bf-rf)/delta + 2)
	default:
		h = 60 * ((rf-gf)/delta + 4)
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}

// ============================================================================
// LABEL PROFILES
// ============================================================================

// profile weights each symptom share when scoring a label.
type profile [symptomCount]float64

func (p profile) score(f Features) float64 {
	total := 0.0
	for i, w := range p {
		total += w * f[i]
	}
	return total
}

// keywordProfiles maps disease-name fragments to the symptoms they present.
// A label matching several fragments takes the strongest weight per symptom.
var keywordProfiles = []struct {
	keywords []string
	weights  profile
}{
	{[]string{"mildew", "powder", "downy"}, profile{SymptomPowder: 1, SymptomChlorosis: 0.3}},
	{[]string{"rust"}, profile{SymptomRust: 1, SymptomNecrosis: 0.3}},
	{[]string{"blight", "scorch", "burn", "blast"}, profile{SymptomNecrosis: 1, SymptomLesion: 0.4}},
	{[]string{"spot", "septoria", "anthracnose", "scab", "esca", "cercospora", "canker"}, profile{SymptomLesion: 1, SymptomNecrosis: 0.5}},
	{[]string{"rot", "mold", "mould", "smut"}, profile{SymptomLesion: 0.8, SymptomPowder: 0.4, SymptomNecrosis: 0.4}},
	{[]string{"virus", "mosaic", "curl", "greening", "yellow", "streak", "wilt", "hopper", "mite"}, profile{SymptomChlorosis: 1, SymptomLesion: 0.2}},
}

var genericProfile = profile{SymptomChlorosis: 0.5, SymptomNecrosis: 0.5, SymptomLesion: 0.5}

var healthyProfile = profile{
	SymptomHealthy:   1,
	SymptomChlorosis: -1,
	SymptomNecrosis:  -1,
	SymptomLesion:    -1,
	SymptomPowder:    -1,
	SymptomRust:      -1,
}

func profileFor(label string) profile {
	l := strings.ToLower(label)
	if l == strings.ToLower(HealthyLabel) {
		return healthyProfile
	}
	var p profile
	matched := false
	for _, kp := range keywordProfiles {
		for _, kw := range kp.keywords {
			if strings.Contains(l, kw) {
				matched = true
				for i, w := range kp.weights {
					p[i] = math.Max(p[i], w)
				}
				break
			}
		}
	}
	if !matched {
		return genericProfile
	}
	return p
}
