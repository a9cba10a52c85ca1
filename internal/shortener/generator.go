package shortener

import (
	"context"
	"fmt"
	"strings"

	"github.com/jaevor/go-nanoid"
)

// Alphabet is the default code alphabet: ASCII letters and digits.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// MaxCodeLength is the longest code the link store accepts (links.code VARCHAR(20)).
const MaxCodeLength = 20

// CodeGenerator produces a candidate code.
type CodeGenerator func() string

// Checker reports whether a code is already in use.
type Checker interface {
	Exists(ctx context.Context, code Code) (bool, error)
}

// Generator draws random codes and retries on collision up to a fixed number of attempts.
type Generator struct {
	checker  Checker
	next     CodeGenerator
	attempts int
}

// NewGenerator creates a generator over alphabet with codes of the given length.
func NewGenerator(checker Checker, alphabet string, length, attempts int) (*Generator, error) {
	if length > MaxCodeLength {
		return nil, fmt.Errorf("code generator: length %d exceeds %d", length, MaxCodeLength)
	}

	next, err := nanoid.CustomASCII(alphabet, length)
	if err != nil {
		return nil, fmt.Errorf("code generator: %w", err)
	}

	return NewGeneratorFunc(checker, next, attempts), nil
}

// NewGeneratorFunc creates a generator from an existing candidate source.
func NewGeneratorFunc(checker Checker, next CodeGenerator, attempts int) *Generator {
	if attempts < 1 {
		attempts = 1
	}

	return &Generator{
		checker:  checker,
		next:     next,
		attempts: attempts,
	}
}

// Generate returns a code that was free at the time of the check.
func (g *Generator) Generate(ctx context.Context) (Code, error) {
	for range g.attempts {
		code := Code(g.next())

		taken, err := g.checker.Exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code %s: %w", code, err)
		}

		if !taken {
			return code, nil
		}
	}

	return "", ErrCodeSpaceExhausted
}

// AliasPolicy validates caller-chosen codes.
type AliasPolicy struct {
	MinLength int
	MaxLength int
	Reserved  []string
}

// DefaultReserved lists paths that a custom alias must never shadow.
func DefaultReserved() []string {
	return []string{"api", "docs", "health", "openapi", "schemas", "admin", "login", "register"}
}

// Validate checks length, charset and reserved words.
func (p AliasPolicy) Validate(alias string) error {
	if len(alias) < p.MinLength || len(alias) > p.MaxLength {
		return fmt.Errorf("%w: length must be between %d and %d", ErrInvalidAlias, p.MinLength, p.MaxLength)
	}

	for _, r := range alias {
		if !isAlphanumeric(r) {
			return fmt.Errorf("%w: only letters and digits are allowed", ErrInvalidAlias)
		}
	}

	for _, word := range p.Reserved {
		if strings.EqualFold(alias, word) {
			return fmt.Errorf("%w: %q is reserved", ErrInvalidAlias, alias)
		}
	}

	return nil
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
