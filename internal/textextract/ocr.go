package textextract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

const ocrPrompt = `Extract ALL visible text from this bank transfer receipt.
Read everything from top to bottom, keeping one printed line per output line.
Keep labels and values exactly as printed, in their original language.
Return ONLY the extracted text, nothing else.`

// Recognizer turns a document into text. GeminiRecognizer is the
// production implementation.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte, mimeType string) (string, error)
}

// OCR sends rasterized or otherwise unreadable documents to a recognizer,
// at most requestsPerMinute times per minute.
type OCR struct {
	recognizer Recognizer
	limiter    *rate.Limiter
}

// NewOCR wraps recognizer with a rate limiter.
func NewOCR(recognizer Recognizer, requestsPerMinute int) *OCR {
	if requestsPerMinute < 1 {
		requestsPerMinute = 1
	}
	limit := rate.Every(time.Minute / time.Duration(requestsPerMinute))
	return &OCR{recognizer: recognizer, limiter: rate.NewLimiter(limit, 1)}
}

func (o *OCR) Name() string { return MethodOCR }

func (o *OCR) Extract(ctx context.Context, data []byte) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("ocr rate limit: %w", err)
	}
	return o.recognizer.Recognize(ctx, data, "application/pdf")
}

// GeminiRecognizer performs plain-text OCR with a Gemini model.
type GeminiRecognizer struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiRecognizer creates a client for modelName.
func NewGeminiRecognizer(ctx context.Context, apiKey, modelName string) (*GeminiRecognizer, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiRecognizer{client: client, model: client.GenerativeModel(modelName)}, nil
}

func (g *GeminiRecognizer) Recognize(ctx context.Context, data []byte, mimeType string) (string, error) {
	resp, err := g.model.GenerateContent(ctx,
		genai.Text(ocrPrompt),
		genai.Blob{MIMEType: mimeType, Data: data},
	)
	if err != nil {
		return "", fmt.Errorf("gemini OCR: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no candidates from Gemini API")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

// Close releases the client.
func (g *GeminiRecognizer) Close() error {
	return g.client.Close()
}
