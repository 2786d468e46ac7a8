package scoring

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karmahq/questline/go/clients/openai_client"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"scaled", []float64{1, 1}, []float64{5, 5}, 1},
		{"length mismatch", []float64{1, 2}, []float64{1, 2, 3}, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 2}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

type fakeOpenAI struct {
	embedding []float64
	score     int
	reasoning string
	toolCalls int
}

func (f *fakeOpenAI) CreateEmbedding(ctx context.Context, model, input string) ([]float64, error) {
	return f.embedding, nil
}

func (f *fakeOpenAI) ChatCompletionToolCall(ctx context.Context, req openai_client.ChatRequest) (*openai_client.ToolCall, error) {
	f.toolCalls++
	call := &openai_client.ToolCall{}
	call.Function.Name = scoringToolName
	call.Function.Arguments = fmt.Sprintf(`{"score": %d, "reasoning": %q}`, f.score, f.reasoning)
	return call, nil
}

type fakeScoringRepo struct {
	cached   []*CachedActivity
	inserted []CacheActivityRequest
}

func (f *fakeScoringRepo) ListCachedActivities(ctx context.Context) ([]*CachedActivity, error) {
	return f.cached, nil
}

func (f *fakeScoringRepo) CacheActivity(ctx context.Context, req CacheActivityRequest) (*CachedActivity, error) {
	f.inserted = append(f.inserted, req)
	return &CachedActivity{
		Embedding:       req.Embedding,
		KarmaPoints:     req.KarmaPoints,
		DescriptionText: req.DescriptionText,
	}, nil
}

func TestPointsReusesCachedMatch(t *testing.T) {
	openai := &fakeOpenAI{embedding: []float64{1, 0, 0}, score: 90}
	repo := &fakeScoringRepo{
		cached: []*CachedActivity{
			// Similarity 1.0, well above threshold.
			{Embedding: []float64{2, 0, 0}, KarmaPoints: 42, DescriptionText: "Category: Litter Pickup. Description: trash"},
		},
	}
	scorer := NewScorer(openai, repo)

	points, err := scorer.Points(context.Background(), "Litter Pickup", "Picking up trash.", nil)
	require.NoError(t, err)
	assert.Equal(t, 42, points)
	assert.Zero(t, openai.toolCalls)
	assert.Empty(t, repo.inserted)
}

func TestPointsScoresAndCachesOnMiss(t *testing.T) {
	openai := &fakeOpenAI{embedding: []float64{1, 0, 0}, score: 55, reasoning: "moderate effort"}
	repo := &fakeScoringRepo{
		cached: []*CachedActivity{
			// Orthogonal vector, similarity 0.
			{Embedding: []float64{0, 1, 0}, KarmaPoints: 10},
		},
	}
	scorer := NewScorer(openai, repo)

	points, err := scorer.Points(context.Background(), "Recycling Activity", "Sorting recyclables.", []string{"Bottle (Score: 0.91)"})
	require.NoError(t, err)
	assert.Equal(t, 55, points)
	assert.Equal(t, 1, openai.toolCalls)

	require.Len(t, repo.inserted, 1)
	assert.Equal(t, 55, repo.inserted[0].KarmaPoints)
	assert.Equal(t, "Category: Recycling Activity. Description: Sorting recyclables.", repo.inserted[0].DescriptionText)
	assert.Equal(t, []float64{1, 0, 0}, repo.inserted[0].Embedding)
}

func TestPointsBelowThresholdScoresFresh(t *testing.T) {
	// Similarity ~0.71, below the 0.80 threshold.
	openai := &fakeOpenAI{embedding: []float64{1, 1, 0}, score: 30}
	repo := &fakeScoringRepo{
		cached: []*CachedActivity{
			{Embedding: []float64{1, 0, 0}, KarmaPoints: 99},
		},
	}
	scorer := NewScorer(openai, repo)

	points, err := scorer.Points(context.Background(), "Helping Others (General)", "Carrying groceries.", nil)
	require.NoError(t, err)
	assert.Equal(t, 30, points)
	assert.Equal(t, 1, openai.toolCalls)
}

func TestPointsClampsModelScore(t *testing.T) {
	openai := &fakeOpenAI{embedding: []float64{1}, score: 250}
	repo := &fakeScoringRepo{}
	scorer := NewScorer(openai, repo)

	points, err := scorer.Points(context.Background(), "Recycling Activity", "Planet-scale cleanup.", nil)
	require.NoError(t, err)
	assert.Equal(t, 100, points)
}
