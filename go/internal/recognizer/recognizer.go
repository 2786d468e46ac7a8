package recognizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/karmahq/questline/go/clients/openai_client"
)

// FallbackCategory is returned when no configured activity is clearly
// indicated by the image.
const FallbackCategory = "No Specific Good Samaritan Activity Detected"

const (
	labelModel       = "gpt-4o"
	describeModel    = "gpt-4o"
	classifyModel    = "gpt-3.5-turbo"
	chatTemperature  = 0.2
	classifyMaxToken = 50
)

// ChatClient is the slice of the OpenAI client the recognizer needs.
type ChatClient interface {
	ChatCompletion(ctx context.Context, req openai_client.ChatRequest) (string, error)
}

// Recognizer turns an uploaded image into labels, an activity description,
// and an activity category constrained to the configured list.
type Recognizer struct {
	chat ChatClient
}

func NewRecognizer(chat ChatClient) *Recognizer {
	return &Recognizer{chat: chat}
}

// Labels analyzes an image and returns detected labels formatted as
// "Label (Score: 0.97)", most confident first.
func (r *Recognizer) Labels(ctx context.Context, imageURL string) ([]string, error) {
	content, err := r.chat.ChatCompletion(ctx, openai_client.ChatRequest{
		Model: labelModel,
		Messages: []openai_client.Message{
			{
				Role: "system",
				Content: "You are an image analysis service. List the objects, activities and " +
					"scene elements visible in the image at the given URL, one per line, " +
					"most confident first, each formatted exactly as: Label (Score: 0.97). " +
					"Scores are your confidence between 0.00 and 1.00. Return nothing else.",
			},
			{Role: "user", Content: "Image URL: " + imageURL},
		},
		Temperature: chatTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get image labels: %w", err)
	}

	var labels []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			labels = append(labels, line)
		}
	}
	return labels, nil
}

// Describe produces a one-sentence description of the activity the labels
// suggest.
func (r *Recognizer) Describe(ctx context.Context, labels []string) (string, error) {
	if len(labels) == 0 {
		return "", fmt.Errorf("no labels provided for description")
	}

	content, err := r.chat.ChatCompletion(ctx, openai_client.ChatRequest{
		Model: describeModel,
		Messages: []openai_client.Message{
			{
				Role: "system",
				Content: "You describe activities depicted in images. Given a list of labels " +
					"detected in an image, write a single sentence describing the most " +
					"likely activity taking place. Return only the sentence.",
			},
			{Role: "user", Content: "Detected labels:\n" + strings.Join(labels, ", ")},
		},
		Temperature: chatTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate activity description: %w", err)
	}
	return strings.TrimSpace(content), nil
}

// Classify picks the activity category that best fits the description and
// labels. The result is always one of categories or FallbackCategory: an
// off-list response falls back to a case-insensitive substring match, then
// to FallbackCategory.
func (r *Recognizer) Classify(ctx context.Context, description string, labels, categories []string) (string, error) {
	if len(labels) == 0 && description == "" {
		return FallbackCategory, nil
	}

	system := fmt.Sprintf(
		"You are an expert image content classifier. Classify an activity into one of the "+
			"following categories based on its description and a list of labels detected in an "+
			"image. The categories are: %s. If no specific activity from the list is clearly "+
			"indicated, choose '%s'. Return only the name of the chosen category and nothing else.",
		strings.Join(categories, ", "), FallbackCategory,
	)
	user := fmt.Sprintf(
		"Activity description: %s\n\nDetected labels (focus on the descriptive part, some "+
			"include confidence scores):\n%s\n\nWhich category best fits? Remember to only "+
			"return the category name.",
		description, strings.Join(labels, ", "),
	)

	content, err := r.chat.ChatCompletion(ctx, openai_client.ChatRequest{
		Model: classifyModel,
		Messages: []openai_client.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: chatTemperature,
		MaxTokens:   classifyMaxToken,
	})
	if err != nil {
		return "", fmt.Errorf("failed to classify activity: %w", err)
	}

	answer := strings.TrimSpace(content)
	for _, cat := range categories {
		if answer == cat {
			return cat, nil
		}
	}
	// Off-list response: accept a category the answer merely contains.
	for _, cat := range categories {
		if strings.Contains(strings.ToLower(answer), strings.ToLower(cat)) {
			return cat, nil
		}
	}
	return FallbackCategory, nil
}
