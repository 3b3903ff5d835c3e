package ai

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
)

const defaultStubText = "上記の症状および施術内容から、当該施術は負傷の治癒に必要かつ相当なものと判断いたします。"

// Stub is a deterministic provider for development and tests. Embeddings are
// hashed rune unigrams and bigrams, so equal text gives equal vectors and
// overlapping text gives positive similarity.
type Stub struct {
	dimension int

	// TextFunc, when set, produces the generated text for a prompt.
	TextFunc func(prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
	embeds  []string
}

func NewStub(dimension int) *Stub {
	if dimension <= 0 {
		dimension = 768
	}
	return &Stub{dimension: dimension}
}

func (s *Stub) Dimension() int {
	return s.dimension
}

func (s *Stub) GenerateText(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()

	if s.TextFunc != nil {
		return s.TextFunc(prompt)
	}
	return defaultStubText, nil
}

func (s *Stub) EmbedText(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.embeds = append(s.embeds, text)
	s.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return nil, errors.New("cannot embed empty text")
	}

	vector := make([]float64, s.dimension)
	runes := []rune(strings.ToLower(text))
	for i, r := range runes {
		if r == ' ' {
			continue
		}
		vector[s.bucket(string(r))] += 1
		if i+1 < len(runes) && runes[i+1] != ' ' {
			vector[s.bucket(string(runes[i:i+2]))] += 1
		}
	}

	var norm float64
	for _, v := range vector {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vector {
			vector[i] /= norm
		}
	}

	return vector, nil
}

// Prompts returns every prompt passed to GenerateText so far.
func (s *Stub) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// EmbedInputs returns every text passed to EmbedText so far.
func (s *Stub) EmbedInputs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.embeds...)
}

func (s *Stub) bucket(token string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return int(h.Sum32() % uint32(s.dimension))
}
