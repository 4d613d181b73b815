package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// defaultVocabulary is the built-in AI-term list used for keyword
// extraction when no vocabulary file is configured.
var defaultVocabulary = []string{
	"artificial intelligence",
	"machine learning",
	"deep learning",
	"neural network",
	"large language model",
	"llm",
	"transformer",
	"generative ai",
	"gpt",
	"diffusion model",
	"reinforcement learning",
	"fine-tuning",
	"computer vision",
	"natural language processing",
	"nlp",
	"multimodal",
	"foundation model",
	"agent",
	"alignment",
	"benchmark",
	"inference",
	"training",
	"open source model",
	"robotics",
	"agi",
}

// DefaultVocabulary returns a copy of the built-in AI-term list.
func DefaultVocabulary() []string {
	vocab := make([]string, len(defaultVocabulary))
	copy(vocab, defaultVocabulary)
	return vocab
}

// LoadVocabulary reads one term per line, skipping blanks and lines
// starting with '#'. An empty path returns the built-in list.
func LoadVocabulary(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultVocabulary(), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary file: %w", err)
	}
	defer file.Close()

	var vocab []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		term := strings.TrimSpace(scanner.Text())
		if term == "" || strings.HasPrefix(term, "#") {
			continue
		}
		vocab = append(vocab, strings.ToLower(term))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocabulary file: %w", err)
	}
	if len(vocab) == 0 {
		return nil, fmt.Errorf("vocabulary file %s contains no terms", path)
	}
	return vocab, nil
}
