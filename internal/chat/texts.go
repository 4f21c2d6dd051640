// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"golang.org/x/text/language"

	"github.com/jeranaias/planthealth/internal/router"
)

// ============================================================================
// WELCOME
// ============================================================================

// Supported welcome languages. English is first so it wins on no match.
var supported = []language.Tag{
	language.English,
	language.Hindi,
	language.Telugu,
	language.Tamil,
}

var matcher = language.NewMatcher(supported)

var welcomes = []string{
	"Hello! I am your Plant Health Assistant. I can help you with crop disease identification, treatment recommendations, and agricultural best practices. How can I assist you today?",
	"नमस्ते! मैं आपका प्लांट हेल्थ असिस्टेंट हूं। मैं फसल रोग पहचान, उपचार सिफारिशों और कृषि सर्वोत्तम प्रथाओं में आपकी मदद कर सकता हूं।",
	"హలో! నేను మీ ప్లాంట్ హెల్త్ అసిస్టెంట్‌ని. పంట వ్యాధి గుర్తింపు, చికిత్స సిఫార్సులు మరియు వ్యవసాయ ఉత్తమ పద్ధతులలో నేను మీకు సహాయం చేయగలను.",
	"வணக்கம்! நான் உங்கள் தாவர ஆரோக்கிய உதவியாளர். இன்று உங்கள் பயிர்களில் நான் எப்படி உதவ முடியும்?",
}

// ResolveLanguage maps a client language code to a supported base language,
// defaulting to English.
func ResolveLanguage(code string) language.Tag {
	tag, err := language.Parse(code)
	if err != nil {
		return language.English
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

// Welcome returns the greeting for a language code.
func Welcome(code string) string {
	tag := ResolveLanguage(code)
	for i, t := range supported {
		if t == tag {
			return welcomes[i]
		}
	}
	return welcomes[0]
}

// Languages lists the supported language codes.
func Languages() []string {
	out := make([]string, len(supported))
	for i, t := range supported {
		out[i] = t.String()
	}
	return out
}

// ============================================================================
// ADVISORY PARAGRAPHS
// ============================================================================

var replies = map[router.Intent]string{
	router.IntentDisease: "Plant diseases can be caused by fungi, bacteria, viruses, or environmental stress. " +
		"For accurate diagnosis, I recommend uploading a clear image of the affected plant part. " +
		"Common signs to look for include unusual spots, discoloration, wilting, or abnormal growth patterns. " +
		"Early detection is key to effective treatment, so regular monitoring of your crops is essential. " +
		"Would you like me to help identify a specific disease or provide general prevention tips?",

	router.IntentTreatment: "Treatment approaches depend on the specific disease identified. " +
		"For fungal diseases, copper-based fungicides or neem oil applications are often effective. " +
		"Bacterial infections may require removing affected parts and improving air circulation. " +
		"Always follow integrated pest management practices, combining cultural, biological, and chemical controls. " +
		"For best results, apply treatments during early morning or late evening to avoid leaf burn.",

	router.IntentPrevention: "Prevention is the most effective disease management strategy. " +
		"Key practices include using disease-resistant seed varieties, practicing crop rotation, " +
		"maintaining proper plant spacing for air circulation, and avoiding overhead irrigation. " +
		"Regular field monitoring helps catch problems early. " +
		"Soil health is also crucial, so consider regular soil testing and appropriate amendments.",

	router.IntentCrop: "Each crop has specific disease susceptibilities and care requirements. " +
		"I can provide detailed guidance on planting, irrigation, fertilization, and disease management " +
		"for your specific crop. Please let me know which crop you are growing and what specific " +
		"challenges you are facing, and I will provide tailored recommendations.",

	router.IntentGeneral: "I am here to help with all your plant health questions. " +
		"You can ask me about disease identification, treatment options, prevention strategies, " +
		"or general crop management practices. For the most accurate disease diagnosis, " +
		"you can also upload an image of your affected plant using the diagnosis feature. " +
		"What would you like to know about?",
}

// Reply returns the advisory paragraph for an intent. The welcome intent
// and unknown intents get the general paragraph.
func Reply(intent router.Intent) string {
	if r, ok := replies[intent]; ok {
		return r
	}
	return replies[router.IntentGeneral]
}
