package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/karmahq/questline/go/clients/openai_client"
)

const (
	// SimilarityThreshold is the minimum cosine similarity for reusing a
	// cached activity's points instead of scoring from scratch.
	SimilarityThreshold = 0.80

	embeddingModel = "text-embedding-3-large"
	scoringModel   = "gpt-4o"

	scoringToolName = "set_societal_benefit_score"

	minPoints = 0
	maxPoints = 100
)

var scoringToolParameters = json.RawMessage(`{
	"type": "object",
	"properties": {
		"score": {
			"type": "integer",
			"description": "A score from 0 to 100 representing the societal benefit of the described activity. 0 is neutral or no benefit, 100 is highly beneficial.",
			"minimum": 0,
			"maximum": 100
		},
		"reasoning": {
			"type": "string",
			"description": "A brief explanation for the assigned score."
		}
	},
	"required": ["score", "reasoning"]
}`)

// OpenAIClient is the slice of the OpenAI client the scorer needs.
type OpenAIClient interface {
	CreateEmbedding(ctx context.Context, model, input string) ([]float64, error)
	ChatCompletionToolCall(ctx context.Context, req openai_client.ChatRequest) (*openai_client.ToolCall, error)
}

// ScoringRepository is the slice of the repository the scorer needs.
type ScoringRepository interface {
	ListCachedActivities(ctx context.Context) ([]*CachedActivity, error)
	CacheActivity(ctx context.Context, req CacheActivityRequest) (*CachedActivity, error)
}

// Scorer turns a classified activity into karma points. Repeated activities
// are matched by embedding similarity and reuse cached points, so equivalent
// deeds always score the same.
type Scorer struct {
	openai OpenAIClient
	repo   ScoringRepository
}

func NewScorer(openai OpenAIClient, repo ScoringRepository) *Scorer {
	return &Scorer{openai: openai, repo: repo}
}

// Points returns the karma points for an activity. The category and
// description are embedded and matched against the cache at
// SimilarityThreshold; a miss scores via the model and caches the result.
func (s *Scorer) Points(ctx context.Context, category, description string, labels []string) (int, error) {
	textForEmbedding := fmt.Sprintf("Category: %s. Description: %s", category, description)

	embedding, err := s.openai.CreateEmbedding(ctx, embeddingModel, textForEmbedding)
	if err != nil {
		return 0, fmt.Errorf("failed to embed activity: %w", err)
	}

	cached, err := s.repo.ListCachedActivities(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load cached activities: %w", err)
	}

	var best *CachedActivity
	bestSimilarity := 0.0
	for _, activity := range cached {
		if sim := CosineSimilarity(embedding, activity.Embedding); sim > bestSimilarity {
			best = activity
			bestSimilarity = sim
		}
	}
	if best != nil && bestSimilarity >= SimilarityThreshold {
		log.Debug().
			Float64("similarity", bestSimilarity).
			Int("points", best.KarmaPoints).
			Str("matched", best.DescriptionText).
			Msg("reusing cached activity points")
		return best.KarmaPoints, nil
	}

	points, reasoning, err := s.score(ctx, category, description, labels)
	if err != nil {
		return 0, err
	}
	log.Info().
		Int("points", points).
		Str("category", category).
		Str("reasoning", reasoning).
		Msg("scored new activity")

	if _, err := s.repo.CacheActivity(ctx, CacheActivityRequest{
		Embedding:       embedding,
		KarmaPoints:     points,
		DescriptionText: textForEmbedding,
		Description:     description,
		Category:        category,
	}); err != nil {
		return 0, fmt.Errorf("failed to cache scored activity: %w", err)
	}
	return points, nil
}

func (s *Scorer) score(ctx context.Context, category, description string, labels []string) (int, string, error) {
	system := "You are an AI assistant tasked with evaluating the societal benefit of described " +
		"activities. Consider environmental impact, community well-being, health benefits, acts " +
		"of kindness, and other positive contributions to society. Assign a score from 0 (neutral " +
		"or no benefit) to 100 (highly beneficial), evenly distributed: a low effort action like " +
		"picking up a single piece of trash is around 25, a neutral action like watching TV is 0, " +
		"and a high effort or highly beneficial action like volunteering is 75-100. Individual " +
		"benefit like self care also counts, scored by effort. You must call the '" +
		scoringToolName + "' function with your determined score and a brief reasoning."
	if category != "" && category != "No Specific Good Samaritan Activity Detected" {
		system += fmt.Sprintf(" This activity has been classified as related to: '%s'. Use this "+
			"classification as additional context.", category)
	}

	user := "Activity description:\n" + description
	if len(labels) > 0 {
		user += "\n\nLabels detected in an image of this activity:\n" + strings.Join(labels, ", ")
	}

	toolChoice := &openai_client.ToolChoice{Type: "function"}
	toolChoice.Function.Name = scoringToolName

	call, err := s.openai.ChatCompletionToolCall(ctx, openai_client.ChatRequest{
		Model: scoringModel,
		Messages: []openai_client.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Tools: []openai_client.Tool{{
			Type: "function",
			Function: openai_client.ToolFunction{
				Name:        scoringToolName,
				Description: "Sets the societal benefit score and reasoning for an activity.",
				Parameters:  scoringToolParameters,
			},
		}},
		ToolChoice:  toolChoice,
		Temperature: 0.2,
		MaxTokens:   200,
	})
	if err != nil {
		return 0, "", fmt.Errorf("failed to score activity: %w", err)
	}
	if call.Function.Name != scoringToolName {
		return 0, "", fmt.Errorf("unexpected tool call: %s", call.Function.Name)
	}

	var args struct {
		Score     int    `json:"score"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return 0, "", fmt.Errorf("failed to parse scoring tool arguments: %w", err)
	}

	points := args.Score
	if points < minPoints {
		points = minPoints
	}
	if points > maxPoints {
		points = maxPoints
	}
	return points, args.Reasoning, nil
}
