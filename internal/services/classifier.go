package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"schoolbox-be/internal/models"
	"schoolbox-be/internal/utils"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const classifierSystemPrompt = `You are the inbox assistant for a preschool.
Classify the email and respond only with a JSON object.`

const classifierPromptFormat = `Classify the following email received by the school office.

Respond with a JSON object containing:
- category: one of %s
- confidence: number between 0 and 1
- sentiment: "positive", "neutral" or "negative"
- sentiment_score: number between -1 and 1
- priority: "low", "normal", "high" or "urgent"
- priority_reason: short string
- intents: array of objects with intent (short verb phrase), confidence (0-1), entities (array of strings)
- extracted_info: object with any of child_name, child_date_of_birth, parent_name, parent_email, parent_phone, preferred_start_date, program
- suggested_response: object with template, text, confidence (0-1), requires_review (boolean)
- should_auto_respond: boolean (true only for routine inquiries that the suggested response fully answers)

Email:
From: %s
Subject: %s
Received: %s
Body:
%s

Respond only with the JSON object and nothing else.`

// classifierResponse is the wire shape we require from the model.
type classifierResponse struct {
	Category       string  `json:"category"`
	Confidence     float64 `json:"confidence"`
	Sentiment      string  `json:"sentiment"`
	SentimentScore float64 `json:"sentiment_score"`
	Priority       string  `json:"priority"`
	PriorityReason string  `json:"priority_reason"`
	Intents        []struct {
		Intent     string   `json:"intent"`
		Confidence float64  `json:"confidence"`
		Entities   []string `json:"entities"`
	} `json:"intents"`
	ExtractedInfo struct {
		ChildName          string            `json:"child_name"`
		ChildDateOfBirth   string            `json:"child_date_of_birth"`
		ParentName         string            `json:"parent_name"`
		ParentEmail        string            `json:"parent_email"`
		ParentPhone        string            `json:"parent_phone"`
		PreferredStartDate string            `json:"preferred_start_date"`
		Program            string            `json:"program"`
		Other              map[string]string `json:"other"`
	} `json:"extracted_info"`
	SuggestedResponse struct {
		Template       string  `json:"template"`
		Text           string  `json:"text"`
		Confidence     float64 `json:"confidence"`
		RequiresReview bool    `json:"requires_review"`
	} `json:"suggested_response"`
	ShouldAutoRespond bool `json:"should_auto_respond"`
}

// OpenAIClassifier classifies emails with a chat-completion call. Malformed
// model output is an error, never a silent default: the caller records it
// and the message is retried on a later tick.
type OpenAIClassifier struct {
	client      *openai.Client
	modelName   string
	maxTokens   int
	temperature float32
	maxBodySize int
	logger      *zap.Logger
}

func NewOpenAIClassifier(apiKey, modelName string, maxTokens int, temperature float32, maxBodySize int, logger *zap.Logger) *OpenAIClassifier {
	return &OpenAIClassifier{
		client:      openai.NewClient(apiKey),
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		maxBodySize: maxBodySize,
		logger:      logger,
	}
}

// Classify sends the email to the model and parses the structured verdict.
func (c *OpenAIClassifier) Classify(ctx context.Context, email *models.Email) (*models.Analysis, error) {
	body := email.Body.Text
	if body == "" {
		body = email.Snippet
	}
	body = utils.TruncateUTF8(body, c.maxBodySize)

	categories := make([]string, len(models.Categories))
	for i, cat := range models.Categories {
		categories[i] = string(cat)
	}

	prompt := fmt.Sprintf(classifierPromptFormat,
		strings.Join(categories, ", "),
		email.From.Email,
		email.Subject,
		email.ReceivedAt.Format("2006-01-02 15:04"),
		body)

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classificationErr("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, classificationErr("empty response from model")
	}

	analysis, err := ParseAnalysis(resp.Choices[0].Message.Content)
	if err != nil {
		c.logger.Warn("classifier returned malformed output",
			zap.String("messageId", email.MessageID),
			zap.Error(err))
		return nil, err
	}

	return analysis, nil
}

// ParseAnalysis parses model output into a normalized Analysis. Categories
// outside the closed set map to unclassified; confidence and sentiment
// score are clamped to their documented ranges.
func ParseAnalysis(text string) (*models.Analysis, error) {
	var parsed classifierResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		// Models sometimes wrap the JSON in prose or a code fence; try the
		// region between the first '{' and the last '}'.
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return nil, classificationErr("no JSON object in model output: %w", err)
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
			return nil, classificationErr("parse model output: %w", err)
		}
	}

	if parsed.Category == "" {
		return nil, classificationErr("model output missing category")
	}

	analysis := &models.Analysis{
		Category:       models.NormalizeCategory(parsed.Category),
		Confidence:     clamp(parsed.Confidence, 0, 1),
		Sentiment:      models.NormalizeSentiment(parsed.Sentiment),
		SentimentScore: clamp(parsed.SentimentScore, -1, 1),
		Priority:       models.NormalizePriority(parsed.Priority),
		PriorityReason: parsed.PriorityReason,
		Intents:        parseIntents(parsed),
		ExtractedInfo: models.ExtractedInfo{
			ChildName:          strings.TrimSpace(parsed.ExtractedInfo.ChildName),
			ChildDateOfBirth:   strings.TrimSpace(parsed.ExtractedInfo.ChildDateOfBirth),
			ParentName:         strings.TrimSpace(parsed.ExtractedInfo.ParentName),
			ParentEmail:        strings.TrimSpace(parsed.ExtractedInfo.ParentEmail),
			ParentPhone:        strings.TrimSpace(parsed.ExtractedInfo.ParentPhone),
			PreferredStartDate: strings.TrimSpace(parsed.ExtractedInfo.PreferredStartDate),
			Program:            strings.TrimSpace(parsed.ExtractedInfo.Program),
			Other:              parsed.ExtractedInfo.Other,
		},
		SuggestedResponse: models.SuggestedResponse{
			Template:       parsed.SuggestedResponse.Template,
			Text:           parsed.SuggestedResponse.Text,
			Confidence:     clamp(parsed.SuggestedResponse.Confidence, 0, 1),
			RequiresReview: parsed.SuggestedResponse.RequiresReview,
		},
		ShouldAutoRespond: parsed.ShouldAutoRespond,
	}

	return analysis, nil
}

// parseIntents keeps named intents only; an entry without an intent string
// carries no information.
func parseIntents(parsed classifierResponse) []models.Intent {
	var intents []models.Intent
	for _, in := range parsed.Intents {
		name := strings.TrimSpace(in.Intent)
		if name == "" {
			continue
		}
		intents = append(intents, models.Intent{
			Intent:     name,
			Confidence: clamp(in.Confidence, 0, 1),
			Entities:   in.Entities,
		})
	}
	return intents
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
