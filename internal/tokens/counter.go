// Package tokens counts tokens under a selected tokenization scheme
// and converts counts into estimated model costs.
package tokens

import (
	"fmt"
	"strings"

	tiktoken "github.com/pkoukk/tiktoken-go"
	hf "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	"go.uber.org/zap"
)

// Scheme selects a tokenization backend. Different schemes can
// legitimately yield different counts for the same text.
type Scheme string

const (
	SchemeTiktoken    Scheme = "tiktoken"
	SchemeHuggingFace Scheme = "huggingface"
	// SchemeHeuristic approximates at ~4 characters per token. It
	// needs no model data and works offline.
	SchemeHeuristic Scheme = "heuristic"
)

const (
	defaultTiktokenModel = "gpt-4o"
	defaultHFModel       = "gpt2"
)

// Counter counts tokens for text. Implementations are stateless with
// respect to Count: identical text always yields an identical count.
type Counter interface {
	Count(text string) int
	Close()
}

// Config selects and parameterizes a Counter.
type Config struct {
	Scheme Scheme
	// Model names the tokenizer model (e.g. "gpt-4o" for tiktoken,
	// "gpt2" for huggingface). Empty selects the scheme default.
	Model string
	// TokenizerFile points at a local tokenizer.json for the
	// huggingface scheme, skipping the hub download.
	TokenizerFile string
	Logger        *zap.Logger
}

// NewCounter builds a Counter for the configured scheme.
func NewCounter(cfg Config) (Counter, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	switch Scheme(strings.ToLower(string(cfg.Scheme))) {
	case SchemeTiktoken:
		return newTiktokenCounter(cfg.Model, logger)
	case SchemeHuggingFace:
		return newHFCounter(cfg.Model, cfg.TokenizerFile, logger)
	case SchemeHeuristic:
		return heuristicCounter{}, nil
	default:
		return nil, fmt.Errorf("unsupported tokenizer scheme %q (use tiktoken, huggingface or heuristic)", cfg.Scheme)
	}
}

type tiktokenCounter struct {
	ttk *tiktoken.Tiktoken
}

func newTiktokenCounter(model string, logger *zap.Logger) (Counter, error) {
	if model == "" {
		model = defaultTiktokenModel
	}
	ttk, err := tiktoken.EncodingForModel(model)
	if err != nil {
		logger.Warn("tiktoken model not found, falling back to default",
			zap.String("model", model),
			zap.String("fallback", defaultTiktokenModel),
			zap.Error(err))
		ttk, err = tiktoken.EncodingForModel(defaultTiktokenModel)
		if err != nil {
			return nil, fmt.Errorf("loading tiktoken encoding for %s: %w", defaultTiktokenModel, err)
		}
	}
	return &tiktokenCounter{ttk: ttk}, nil
}

func (c *tiktokenCounter) Count(text string) int {
	if c.ttk == nil || text == "" {
		return 0
	}
	return len(c.ttk.EncodeOrdinary(text))
}

func (c *tiktokenCounter) Close() {}

type hfCounter struct {
	htk    *hf.Tokenizer
	logger *zap.Logger
}

func newHFCounter(model, tokenizerFile string, logger *zap.Logger) (Counter, error) {
	if tokenizerFile != "" {
		htk, err := pretrained.FromFile(tokenizerFile)
		if err != nil {
			return nil, fmt.Errorf("loading tokenizer from %s: %w", tokenizerFile, err)
		}
		return &hfCounter{htk: htk, logger: logger}, nil
	}

	if model == "" {
		model = defaultHFModel
	}
	// CachedPath downloads tokenizer.json from the hub on first use.
	configFile, err := hf.CachedPath(model, "tokenizer.json")
	if err != nil {
		return nil, fmt.Errorf("resolving tokenizer for model %s: %w", model, err)
	}
	htk, err := pretrained.FromFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("loading pretrained tokenizer for %s: %w", model, err)
	}
	return &hfCounter{htk: htk, logger: logger}, nil
}

func (c *hfCounter) Count(text string) int {
	if c.htk == nil || text == "" {
		return 0
	}
	en, err := c.htk.EncodeSingle(text)
	if err != nil {
		c.logger.Warn("huggingface tokenizer failed to encode text", zap.Error(err))
		return 0
	}
	return len(en.Tokens)
}

func (c *hfCounter) Close() {}

type heuristicCounter struct{}

// Count uses the ~4 characters per token rule of thumb, rounded up.
func (heuristicCounter) Count(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

func (heuristicCounter) Close() {}
