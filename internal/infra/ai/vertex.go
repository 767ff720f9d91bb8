package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	domainitems "campusfind/internal/domain/items"
)

var ErrEmptyResponse = errors.New("ai: model returned no candidates")

// SuggestParams carries what the reporter has filled in so far. PhotoBase64
// may be a data URL; the header is stripped before decoding.
type SuggestParams struct {
	Name        string
	Status      domainitems.Status
	PhotoBase64 string
}

type Suggestion struct {
	Description string `json:"description"`
	Category    string `json:"category"`
	Location    string `json:"location"`
}

// Suggester pre-fills listing details from an item photo and name using a
// Gemini model on Vertex AI.
type Suggester struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

func NewSuggester(ctx context.Context, projectID, location, model string, logger *slog.Logger) (*Suggester, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("ai: project id is required")
	}
	client, err := genai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, fmt.Errorf("ai: create client: %w", err)
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &Suggester{client: client, model: model, logger: logger}, nil
}

func (s *Suggester) Close() error {
	return s.client.Close()
}

func (s *Suggester) Suggest(ctx context.Context, params SuggestParams) (*Suggestion, error) {
	model := s.client.GenerativeModel(s.model)
	model.GenerationConfig.ResponseMIMEType = "application/json"

	var prompt []genai.Part
	if data := decodePhoto(params.PhotoBase64); data != nil {
		prompt = append(prompt, genai.ImageData("jpeg", data))
	}
	prompt = append(prompt, genai.Text(s.promptText(params)))

	resp, err := model.GenerateContent(ctx, prompt...)
	if err != nil {
		return nil, fmt.Errorf("ai: generate: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, ErrEmptyResponse
	}

	raw := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])
	var out Suggestion
	if err := json.Unmarshal([]byte(extractJSON(raw)), &out); err != nil {
		if s.logger != nil {
			s.logger.Warn("unparseable model output", "model", s.model, "error", err)
		}
		return nil, fmt.Errorf("ai: parse response: %w", err)
	}
	out.Category = nearestVocab(domainitems.Categories, out.Category)
	out.Location = nearestVocab(domainitems.Locations, out.Location)
	return &out, nil
}

func (s *Suggester) promptText(params SuggestParams) string {
	return fmt.Sprintf(`You are helping a student post a %s item report on a campus lost-and-found board.

Item name: %q

Write a short factual description (2-3 sentences) and pick the best matching
category and campus location.

Categories: %s
Locations: %s

Respond with pure JSON only, no code fences:
{"description": "...", "category": "...", "location": "..."}`,
		strings.ToLower(string(params.Status)),
		params.Name,
		strings.Join(domainitems.Categories, ", "),
		strings.Join(domainitems.Locations, ", "),
	)
}

func decodePhoto(encoded string) []byte {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil
	}
	parts := strings.Split(encoded, ",")
	data, err := base64.StdEncoding.DecodeString(parts[len(parts)-1])
	if err != nil {
		return nil
	}
	return data
}

// extractJSON trims anything the model wrapped around the JSON object,
// including markdown fences.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

// nearestVocab snaps a model answer onto the closed vocabulary, falling back
// to Other for anything unrecognized.
func nearestVocab(vocab []string, value string) string {
	value = strings.TrimSpace(value)
	for _, v := range vocab {
		if strings.EqualFold(v, value) {
			return v
		}
	}
	return "Other"
}
