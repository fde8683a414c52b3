// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

// Package masking redacts sensitive values inside audit event metadata.
//
// A field is sensitive when its name matches one of the registered patterns
// (credentials, tokens, personal and financial data). Sensitive values are
// partially masked with a strategy chosen from the field name:
//
//	m := masking.Default()
//	m.MaskValue("secret123", "password")        // "se*****23"
//	m.MaskValue("user@example.com", "email")    // "u**r@example.com"
//	m.MaskValue("+1 (555) 123-4567", "phone")   // "+* (***) ***-4567"
//	m.MaskValue("4111111111111111", "cardNumber") // "************1111"
//
// Nested maps and slices are walked depth first and copied; the input is never
// mutated. Objects stored under a sensitive key collapse to Redacted.
package masking

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

// Redacted replaces maps and slices held by sensitive fields.
const Redacted = "[REDACTED]"

// DefaultMaskChar is used when no mask character is configured.
const DefaultMaskChar = '*'

// defaultPatterns cover credentials, tokens, PII and financial fields.
// Matching is case-insensitive and applied to the whole field name.
var defaultPatterns = []string{
	`pass(word|wd|phrase)`,
	`^pass$`,
	`pwd`,
	`secret`,
	`token`,
	`api[_-]?key`,
	`access[_-]?key`,
	`private[_-]?key`,
	`client[_-]?secret`,
	`credential`,
	`authorization`,
	`^auth$`,
	`cookie`,
	`signature`,
	`e[_-]?mail`,
	`phone`,
	`mobile`,
	`^tel(ephone)?$`,
	`ssn`,
	`social[_-]?security`,
	`address`,
	`birth`,
	`^dob$`,
	`credit[_-]?card`,
	`card[_-]?(number|no|num)`,
	`^pan$`,
	`cvv`,
	`cvc`,
	`iban`,
	`account[_-]?(number|no|num)`,
	`routing[_-]?(number|no|num)`,
}

// Masker decides which fields are sensitive and how to redact them.
// It is safe for concurrent use.
type Masker struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	maskChar rune
}

// Option configures a Masker.
type Option func(*Masker)

// WithMaskChar sets the character used to replace hidden runes.
func WithMaskChar(c rune) Option {
	return func(m *Masker) {
		m.maskChar = c
	}
}

// WithPatterns registers additional field-name patterns at construction.
// Invalid expressions are ignored; use AddPattern to observe the error.
func WithPatterns(exprs ...string) Option {
	return func(m *Masker) {
		for _, expr := range exprs {
			if re, err := compilePattern(expr); err == nil {
				m.patterns = append(m.patterns, re)
			}
		}
	}
}

// New creates a Masker with the default sensitive-field patterns.
func New(opts ...Option) *Masker {
	m := &Masker{maskChar: DefaultMaskChar}
	for _, expr := range defaultPatterns {
		m.patterns = append(m.patterns, regexp.MustCompile("(?i)"+expr))
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var (
	defaultMasker     *Masker
	defaultMaskerOnce sync.Once
)

// Default returns a shared Masker with the default configuration.
func Default() *Masker {
	defaultMaskerOnce.Do(func() {
		defaultMasker = New()
	})
	return defaultMasker
}

func compilePattern(expr string) (*regexp.Regexp, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("empty masking pattern")
	}
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return nil, fmt.Errorf("compile masking pattern %q: %w", expr, err)
	}
	return re, nil
}

// AddPattern registers an additional sensitive field-name pattern.
// Plain words work as case-insensitive substrings.
func (m *Masker) AddPattern(expr string) error {
	re, err := compilePattern(expr)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.patterns = append(m.patterns, re)
	m.mu.Unlock()
	return nil
}

// IsSensitiveField reports whether a field with this name must be masked.
func (m *Masker) IsSensitiveField(name string) bool {
	if name == "" {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, re := range m.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// MaskValue masks value when field is sensitive and returns it unchanged otherwise.
// Nil and boolean values are never masked.
func (m *Masker) MaskValue(value any, field string) any {
	if value == nil || !m.IsSensitiveField(field) {
		return value
	}

	switch v := value.(type) {
	case bool:
		return v
	case map[string]any, []any, []string, map[string]string:
		return Redacted
	}

	s, ok := scalarString(value)
	if !ok {
		return Redacted
	}

	switch fieldKind(field) {
	case kindEmail:
		return m.maskEmail(s)
	case kindPhone:
		return m.maskPhone(s)
	case kindCard:
		return m.maskTrailingDigits(s, 4)
	case kindSSN:
		return m.maskSSN(s)
	default:
		return m.maskDefault(s)
	}
}

// MaskObject returns a masked deep copy of obj.
func (m *Masker) MaskObject(obj map[string]any) map[string]any {
	if obj == nil {
		return nil
	}
	out := make(map[string]any, len(obj))
	for key, value := range obj {
		if m.IsSensitiveField(key) {
			out[key] = m.MaskValue(value, key)
			continue
		}
		out[key] = m.maskNested(value)
	}
	return out
}

// MaskArray returns a masked deep copy of arr, preserving length and order.
func (m *Masker) MaskArray(arr []any) []any {
	if arr == nil {
		return nil
	}
	out := make([]any, len(arr))
	for i, value := range arr {
		out[i] = m.maskNested(value)
	}
	return out
}

func (m *Masker) maskNested(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return m.MaskObject(v)
	case []any:
		return m.MaskArray(v)
	case map[string]string:
		obj := make(map[string]any, len(v))
		for k, s := range v {
			obj[k] = s
		}
		return m.MaskObject(obj)
	default:
		return value
	}
}

type kind int

const (
	kindDefault kind = iota
	kindEmail
	kindPhone
	kindCard
	kindSSN
)

func fieldKind(field string) kind {
	f := strings.ToLower(field)
	switch {
	case strings.Contains(f, "email") || strings.Contains(f, "e_mail") || strings.Contains(f, "e-mail"):
		return kindEmail
	case strings.Contains(f, "phone") || strings.Contains(f, "mobile") || f == "tel" || f == "telephone":
		return kindPhone
	case strings.Contains(f, "card") || f == "pan":
		return kindCard
	case strings.Contains(f, "ssn") || strings.Contains(f, "social"):
		return kindSSN
	default:
		return kindDefault
	}
}

func scalarString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case int:
		return strconv.Itoa(v), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}

func (m *Masker) repeat(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(string(m.maskChar), n)
}

// maskDefault keeps the first and last one or two runes and masks the middle.
// The result has the same rune length as the input.
func (m *Masker) maskDefault(s string) string {
	r := []rune(s)
	n := len(r)
	switch {
	case n == 0:
		return s
	case n <= 2:
		return m.repeat(n)
	case n <= 6:
		return string(r[0]) + m.repeat(n-2) + string(r[n-1])
	default:
		return string(r[:2]) + m.repeat(n-4) + string(r[n-2:])
	}
}

// maskEmail keeps the domain and the first and last rune of the local part.
func (m *Masker) maskEmail(s string) string {
	at := strings.LastIndex(s, "@")
	if at <= 0 {
		return m.maskDefault(s)
	}
	local := []rune(s[:at])
	domain := s[at:]

	n := len(local)
	if n <= 2 {
		return m.repeat(n) + domain
	}
	return string(local[0]) + m.repeat(n-2) + string(local[n-1]) + domain
}

// maskPhone keeps the last four digits and every non-digit rune in place.
func (m *Masker) maskPhone(s string) string {
	r := []rune(s)
	digits := 0
	for _, c := range r {
		if unicode.IsDigit(c) {
			digits++
		}
	}
	keepFrom := digits - 4
	seen := 0
	for i, c := range r {
		if !unicode.IsDigit(c) {
			continue
		}
		if seen < keepFrom {
			r[i] = m.maskChar
		}
		seen++
	}
	return string(r)
}

// maskTrailingDigits drops separators and keeps the last keep digits.
func (m *Masker) maskTrailingDigits(s string, keep int) string {
	var digits []rune
	for _, c := range s {
		if unicode.IsDigit(c) || c == m.maskChar {
			digits = append(digits, c)
		}
	}
	if len(digits) == 0 {
		return m.maskDefault(s)
	}
	if len(digits) <= keep {
		return m.repeat(len(digits))
	}
	return m.repeat(len(digits)-keep) + string(digits[len(digits)-keep:])
}

// maskSSN renders ***-**-NNNN from the trailing four digits.
func (m *Masker) maskSSN(s string) string {
	var digits []rune
	for _, c := range s {
		if unicode.IsDigit(c) {
			digits = append(digits, c)
		}
	}
	if len(digits) < 4 {
		return m.maskDefault(s)
	}
	return m.repeat(3) + "-" + m.repeat(2) + "-" + string(digits[len(digits)-4:])
}
