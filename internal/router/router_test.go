// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/planthealth/internal/session"
)

// TestClassifyIntent verifies the default rule table and its priority order.
func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected Intent
	}{
		{name: "disease_keyword", query: "What disease is this?", expected: IntentDisease},
		{name: "disease_blight", query: "my leaves have blight", expected: IntentDisease},
		{name: "disease_virus", query: "is it a virus", expected: IntentDisease},
		{name: "treatment_cure", query: "how to cure it", expected: IntentTreatment},
		{name: "treatment_spray", query: "when should I spray", expected: IntentTreatment},
		{name: "prevention_avoid", query: "how do I avoid losses", expected: IntentPrevention},
		{name: "prevention_stop", query: "stop the spread", expected: IntentPrevention},
		{name: "crop_tomato", query: "growing tomato in summer", expected: IntentCrop},
		{name: "crop_maize", query: "maize spacing", expected: IntentCrop},
		{name: "general_greeting", query: "hello there", expected: IntentGeneral},
		{name: "general_empty", query: "", expected: IntentGeneral},

		// Priority resolves overlaps.
		{name: "disease_beats_treatment", query: "blight and which fungicide to use", expected: IntentDisease},
		{name: "treatment_beats_prevention", query: "treat and prevent", expected: IntentTreatment},
		{name: "prevention_beats_crop", query: "prevent problems in rice", expected: IntentPrevention},
		{name: "disease_beats_crop", query: "potato late blight", expected: IntentDisease},

		// Substring semantics.
		{name: "substring_treatment", query: "TREATMENT options", expected: IntentTreatment},
		{name: "substring_rot_in_carrot", query: "carrots", expected: IntentDisease},
		{name: "substring_rot_in_protect", query: "protect my field", expected: IntentDisease},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyIntent(tt.query))
		})
	}
}

func TestClassify_Normalization(t *testing.T) {
	r := New()

	assert.Equal(t, IntentDisease, r.Classify("BLIGHT").Intent)
	assert.Equal(t, IntentDisease, r.Classify("ｂｌｉｇｈｔ on leaves").Intent, "full-width letters")
	assert.Equal(t, IntentCrop, r.Classify("ＷＨＥＡＴ").Intent)

	d := r.Classify("Fungicide?")
	assert.Equal(t, IntentTreatment, d.Intent)
	assert.Equal(t, "fungicide", d.Keyword)
	assert.Equal(t, "Fungicide?", d.Query)
	assert.Contains(t, d.Reason, "priority 2")
}

func TestRoute(t *testing.T) {
	r := New()

	t.Run("empty history welcomes", func(t *testing.T) {
		d := r.Route(nil)
		assert.Equal(t, IntentWelcome, d.Intent)
		assert.Empty(t, d.Query)
	})

	t.Run("assistant only welcomes", func(t *testing.T) {
		d := r.Route([]session.Message{{Role: session.RoleAssistant, Content: "blight"}})
		assert.Equal(t, IntentWelcome, d.Intent)
	})

	t.Run("latest user message wins", func(t *testing.T) {
		history := []session.Message{
			{Role: session.RoleUser, Content: "tell me about blight"},
			{Role: session.RoleAssistant, Content: "Plant diseases can be..."},
			{Role: session.RoleUser, Content: "how do I prevent it"},
			{Role: session.RoleAssistant, Content: "virus"},
		}
		d := r.Route(history)
		assert.Equal(t, IntentPrevention, d.Intent)
		assert.Equal(t, "how do I prevent it", d.Query)
	})

	t.Run("blight with fungicide routes to disease", func(t *testing.T) {
		d := r.Route([]session.Message{{Role: session.RoleUser, Content: "Which fungicide works on blight?"}})
		assert.Equal(t, IntentDisease, d.Intent)
		assert.Equal(t, "blight", d.Keyword)
	})
}

func TestNew_CustomRules(t *testing.T) {
	r := New(
		Rule{Priority: 9, Intent: IntentCrop, Keywords: []string{"Mango"}},
		Rule{Priority: 1, Intent: IntentTreatment, Keywords: []string{"neem", ""}},
		Rule{Priority: 5, Intent: IntentDisease},
	)

	assert.Equal(t, IntentTreatment, r.Classify("neem oil for mango").Intent, "sorted by priority")
	assert.Equal(t, IntentCrop, r.Classify("MANGO trees").Intent)
	assert.Equal(t, IntentGeneral, r.Classify("blight").Intent, "default table is replaced")
	assert.Equal(t, IntentGeneral, r.Classify("anything").Intent, "empty keywords never match")
}

func TestNew_EqualPrioritiesKeepOrder(t *testing.T) {
	r := New(
		Rule{Priority: 1, Intent: IntentPrevention, Keywords: []string{"leaf"}},
		Rule{Priority: 1, Intent: IntentDisease, Keywords: []string{"leaf"}},
	)
	assert.Equal(t, IntentPrevention, r.Classify("leaf").Intent)
}

func TestClassify_LongQuery(t *testing.T) {
	q := strings.Repeat("a", MaxQueryLength) + " blight"
	d := New().Classify(q)
	assert.Equal(t, IntentGeneral, d.Intent, "text beyond the cap is ignored")
	assert.Equal(t, q, d.Query)
}

func TestRouter_Concurrent(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, IntentDisease, r.Classify("Blight").Intent)
			}
		}()
	}
	wg.Wait()
}

func TestIntent_String(t *testing.T) {
	for i := IntentWelcome; i <= IntentGeneral; i++ {
		parsed, err := ParseIntent(i.String())
		require.NoError(t, err)
		assert.Equal(t, i, parsed)
	}
	assert.Equal(t, "Intent(42)", Intent(42).String())

	_, err := ParseIntent("gardening")
	assert.Error(t, err)
}
