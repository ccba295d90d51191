// Package promptbank holds the versioned prompt templates used for script
// generation and fills their {placeholder} tokens.
//
// A Bank is read-only after construction. Records come from a YAML bundle,
// either the one embedded in the binary or a file named in configuration, and
// are validated once at load time.
package promptbank

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultBundle []byte

type Status string

const (
	StatusLatest     Status = "LATEST"
	StatusDeprecated Status = "DEPRECATED"
)

// Templates is the system/user/developer triple of a record.
type Templates struct {
	System    string  `yaml:"system" json:"system"`
	User      string  `yaml:"user" json:"user"`
	Developer *string `yaml:"developer,omitempty" json:"developer,omitempty"`
}

// PromptRecord is a named, versioned template.
type PromptRecord struct {
	ID          string    `yaml:"id" json:"id"`
	Name        string    `yaml:"name" json:"name,omitempty"`
	Description string    `yaml:"description" json:"description,omitempty"`
	Version     string    `yaml:"version" json:"version"`
	Status      Status    `yaml:"status" json:"status"`
	Prompts     Templates `yaml:"prompts" json:"prompts"`
}

// FilledPrompt is a record's templates after substitution.
type FilledPrompt struct {
	System    string  `json:"system"`
	User      string  `json:"user"`
	Developer *string `json:"developer,omitempty"`
}

type bundle struct {
	Prompts []PromptRecord `yaml:"prompts"`
}

// Bank is an immutable collection of prompt records.
type Bank struct {
	records []PromptRecord
}

// New builds a bank from records after validating them.
func New(records []PromptRecord) (*Bank, error) {
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		if strings.TrimSpace(rec.ID) == "" {
			return nil, fmt.Errorf("prompt %d: id is required", i)
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, fmt.Errorf("prompt %q: duplicate id", rec.ID)
		}
		seen[rec.ID] = struct{}{}
		switch rec.Status {
		case StatusLatest, StatusDeprecated:
		default:
			return nil, fmt.Errorf("prompt %q: unsupported status %q", rec.ID, rec.Status)
		}
		if strings.TrimSpace(rec.Prompts.System) == "" {
			return nil, fmt.Errorf("prompt %q: system template is required", rec.ID)
		}
		if strings.TrimSpace(rec.Prompts.User) == "" {
			return nil, fmt.Errorf("prompt %q: user template is required", rec.ID)
		}
	}
	cp := make([]PromptRecord, len(records))
	copy(cp, records)
	return &Bank{records: cp}, nil
}

// Load parses a YAML bundle.
func Load(r io.Reader) (*Bank, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var b bundle
	if err := decoder.Decode(&b); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("prompt bundle is empty")
		}
		return nil, fmt.Errorf("parse prompt bundle: %w", err)
	}
	return New(b.Prompts)
}

// LoadFile parses the bundle at path.
func LoadFile(path string) (*Bank, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prompt bundle: %w", err)
	}
	defer file.Close()
	return Load(file)
}

// Default returns the bank embedded in the binary.
func Default() (*Bank, error) {
	return Load(bytes.NewReader(defaultBundle))
}

// Get returns the first record with the exact id.
func (b *Bank) Get(id string) (PromptRecord, bool) {
	for _, rec := range b.records {
		if rec.ID == id {
			return rec, true
		}
	}
	return PromptRecord{}, false
}

// Latest returns the LATEST records in bundle order.
func (b *Bank) Latest() []PromptRecord {
	out := make([]PromptRecord, 0, len(b.records))
	for _, rec := range b.records {
		if rec.Status == StatusLatest {
			out = append(out, rec)
		}
	}
	return out
}

// All returns every record in bundle order.
func (b *Bank) All() []PromptRecord {
	out := make([]PromptRecord, len(b.records))
	copy(out, b.records)
	return out
}

// Fill substitutes values into the record's templates. Placeholders without a
// value are left as literal {key} text.
func (b *Bank) Fill(id string, values map[string]any) (FilledPrompt, bool) {
	rec, ok := b.Get(id)
	if !ok {
		return FilledPrompt{}, false
	}
	rendered := make(map[string]string, len(values))
	for key, value := range values {
		rendered[key] = stringify(value)
	}
	filled := FilledPrompt{
		System: substitute(rec.Prompts.System, rendered),
		User:   substitute(rec.Prompts.User, rendered),
	}
	if rec.Prompts.Developer != nil {
		dev := substitute(*rec.Prompts.Developer, rendered)
		filled.Developer = &dev
	}
	return filled, true
}

var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// substitute replaces tokens in a single pass so substituted text is never
// scanned again.
func substitute(template string, values map[string]string) string {
	if len(values) == 0 {
		return template
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(token string) string {
		if value, ok := values[token[1:len(token)-1]]; ok {
			return value
		}
		return token
	})
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return fmt.Sprint(value)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
