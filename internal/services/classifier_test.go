package services

import (
	"errors"
	"testing"

	"schoolbox-be/internal/models"
)

func TestParseAnalysisStrictJSON(t *testing.T) {
	raw := `{
		"category": "enrollment-inquiry",
		"confidence": 0.92,
		"sentiment": "positive",
		"sentiment_score": 0.4,
		"priority": "normal",
		"priority_reason": "routine inquiry",
		"intents": [
			{"intent": "request-enrollment", "confidence": 0.9, "entities": ["Jane Doe", "Full Day"]}
		],
		"extracted_info": {
			"child_name": "Jane Doe",
			"child_date_of_birth": "2021-05-01",
			"parent_name": "John Doe",
			"parent_email": "john@example.com",
			"program": "Full Day"
		},
		"suggested_response": {
			"template": "waitlist-confirmation",
			"text": "Thanks for your interest!",
			"confidence": 0.8,
			"requires_review": false
		},
		"should_auto_respond": true
	}`

	analysis, err := ParseAnalysis(raw)
	if err != nil {
		t.Fatalf("ParseAnalysis returned error: %v", err)
	}

	if analysis.Category != models.CategoryEnrollmentInquiry {
		t.Errorf("category = %q", analysis.Category)
	}
	if analysis.Confidence != 0.92 {
		t.Errorf("confidence = %v", analysis.Confidence)
	}
	if analysis.ExtractedInfo.ChildName != "Jane Doe" {
		t.Errorf("childName = %q", analysis.ExtractedInfo.ChildName)
	}
	if analysis.ExtractedInfo.ParentEmail != "john@example.com" {
		t.Errorf("parentEmail = %q", analysis.ExtractedInfo.ParentEmail)
	}
	if !analysis.ShouldAutoRespond {
		t.Error("shouldAutoRespond = false, want true")
	}
	if analysis.SuggestedResponse.RequiresReview {
		t.Error("requiresReview = true, want false")
	}
	if len(analysis.Intents) != 1 {
		t.Fatalf("intents = %d, want 1", len(analysis.Intents))
	}
	if analysis.Intents[0].Intent != "request-enrollment" || len(analysis.Intents[0].Entities) != 2 {
		t.Errorf("intent = %+v", analysis.Intents[0])
	}
}

func TestParseAnalysisIntents(t *testing.T) {
	analysis, err := ParseAnalysis(`{
		"category": "general",
		"confidence": 0.6,
		"intents": [
			{"intent": "ask-question", "confidence": 1.4},
			{"intent": "   ", "confidence": 0.5},
			{"intent": "report-absence", "confidence": 0.7, "entities": ["Monday"]}
		]
	}`)
	if err != nil {
		t.Fatalf("ParseAnalysis returned error: %v", err)
	}

	if len(analysis.Intents) != 2 {
		t.Fatalf("intents = %d, want nameless entry dropped", len(analysis.Intents))
	}
	if analysis.Intents[0].Confidence != 1.0 {
		t.Errorf("intent confidence = %v, want clamped to 1.0", analysis.Intents[0].Confidence)
	}
	if analysis.Intents[1].Entities[0] != "Monday" {
		t.Errorf("entities = %v", analysis.Intents[1].Entities)
	}
}

func TestParseAnalysisExtractsWrappedJSON(t *testing.T) {
	raw := "Here is the classification:\n```json\n" +
		`{"category": "parent-question", "confidence": 0.7, "sentiment": "neutral", "priority": "low"}` +
		"\n```\nLet me know if you need anything else."

	analysis, err := ParseAnalysis(raw)
	if err != nil {
		t.Fatalf("ParseAnalysis returned error: %v", err)
	}
	if analysis.Category != models.CategoryParentQuestion {
		t.Errorf("category = %q, want parent-question", analysis.Category)
	}
}

func TestParseAnalysisRejectsMalformedOutput(t *testing.T) {
	for _, raw := range []string{
		"",
		"I could not classify this email.",
		`{"category": }`,
	} {
		if _, err := ParseAnalysis(raw); err == nil {
			t.Errorf("ParseAnalysis(%q) should fail", raw)
		}
	}
}

func TestParseAnalysisRejectsMissingCategory(t *testing.T) {
	_, err := ParseAnalysis(`{"confidence": 0.9, "priority": "high"}`)
	if err == nil {
		t.Fatal("missing category should be an error, not a silent default")
	}

	var pe *PipelineError
	if !errors.As(err, &pe) || pe.Kind != KindClassification {
		t.Errorf("error kind = %q, want %q", ErrorKind(err), KindClassification)
	}
}

func TestParseAnalysisCategoryClosure(t *testing.T) {
	analysis, err := ParseAnalysis(`{"category": "marketing-blast", "confidence": 0.5}`)
	if err != nil {
		t.Fatalf("ParseAnalysis returned error: %v", err)
	}
	if analysis.Category != models.CategoryUnclassified {
		t.Errorf("unknown category stored as %q, want unclassified", analysis.Category)
	}
}

func TestParseAnalysisClampsRanges(t *testing.T) {
	analysis, err := ParseAnalysis(`{
		"category": "general",
		"confidence": 1.7,
		"sentiment": "negative",
		"sentiment_score": -3.5,
		"priority": "sky-high",
		"suggested_response": {"confidence": -0.2}
	}`)
	if err != nil {
		t.Fatalf("ParseAnalysis returned error: %v", err)
	}

	if analysis.Confidence != 1.0 {
		t.Errorf("confidence = %v, want clamped to 1.0", analysis.Confidence)
	}
	if analysis.SentimentScore != -1.0 {
		t.Errorf("sentimentScore = %v, want clamped to -1.0", analysis.SentimentScore)
	}
	if analysis.Priority != models.PriorityNormal {
		t.Errorf("priority = %q, want normal for unknown ladder value", analysis.Priority)
	}
	if analysis.SuggestedResponse.Confidence != 0 {
		t.Errorf("response confidence = %v, want clamped to 0", analysis.SuggestedResponse.Confidence)
	}
}
