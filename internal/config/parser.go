package config

import (
	"strings"

	"gdlmap/internal/analogy"
	"gdlmap/internal/gdl"
)

// ParserConfig controls GDL lexing and parsing.
type ParserConfig struct {
	// MaxDepth bounds term nesting.
	MaxDepth int `yaml:"max_depth" json:"max_depth,omitempty"`
	// AllowEmpty accepts files without rules as an empty rule set.
	AllowEmpty bool `yaml:"allow_empty" json:"allow_empty,omitempty"`
	// Grammar is "extended" (default) or "basic".
	Grammar string `yaml:"grammar" json:"grammar,omitempty"`
}

func (p ParserConfig) grammar() (gdl.Grammar, error) {
	switch strings.ToLower(p.Grammar) {
	case "", "extended":
		return gdl.GrammarExtended, nil
	case "basic":
		return gdl.GrammarBasic, nil
	}
	return 0, &analogy.ConfigError{Field: "parser.grammar", Value: p.Grammar, Reason: "want extended or basic"}
}

// ParseOptions converts the section into gdl parse options.
func (p ParserConfig) ParseOptions() []gdl.ParseOption {
	opts := []gdl.ParseOption{gdl.WithMaxDepth(p.MaxDepth)}
	if p.AllowEmpty {
		opts = append(opts, gdl.WithAllowEmpty())
	}
	if g, err := p.grammar(); err == nil {
		opts = append(opts, gdl.WithLexOptions(gdl.WithGrammar(g)))
	}
	return opts
}
