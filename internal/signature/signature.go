package signature

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Threat labels produced by the built-in signature set.
const (
	LabelCredentialKey   = "CredentialKey"
	LabelSecretToken     = "SecretToken"
	LabelPrivateKeyBlock = "PrivateKeyBlock"
	LabelBulkPII         = "BulkPII"
)

// Signature is one threat pattern plus its occurrence-count policy. Aggregate
// signatures only fire once their match count reaches the configured
// threshold; plain signatures fire on the first occurrence.
type Signature struct {
	Label     string `yaml:"label"`
	Pattern   string `yaml:"pattern"`
	Aggregate bool   `yaml:"aggregate"`
	Threshold int    `yaml:"threshold"`

	re *regexp.Regexp
}

// signatureFile is the on-disk YAML shape for a custom signature set.
type signatureFile struct {
	Signatures []Signature `yaml:"signatures"`
}

// Defaults returns the built-in signature set in priority order. The first
// signature whose count clears its threshold wins, so order is part of the
// contract.
//
// Go's regexp has no lookaround, so the credential-key boundary check uses
// explicit non-token groups instead of (?<!...)/(?!...). The token itself is
// captured: counting resumes after the capture, not after the consumed
// boundary, so adjacent keys sharing a single delimiter are each counted.
func Defaults() []Signature {
	return []Signature{
		{Label: LabelCredentialKey, Pattern: `(?:^|[^A-Z0-9])([A-Z0-9]{20})(?:[^A-Z0-9]|$)`},
		{Label: LabelSecretToken, Pattern: `sk-[a-zA-Z0-9]{32,}`},
		{Label: LabelPrivateKeyBlock, Pattern: `-----BEGIN [A-Z ]*PRIVATE KEY-----`},
		{Label: LabelBulkPII, Pattern: `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, Aggregate: true},
	}
}

// LoadFile loads a custom signature set from a YAML file, preserving the file
// order as the priority order.
func LoadFile(path string) ([]Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signatures file: %w", err)
	}

	var file signatureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse signatures file: %w", err)
	}
	if len(file.Signatures) == 0 {
		return nil, fmt.Errorf("signatures file %s defines no signatures", path)
	}

	for i := range file.Signatures {
		if err := file.Signatures[i].compile(); err != nil {
			return nil, err
		}
	}

	return file.Signatures, nil
}

// count returns the number of occurrences in content. When the pattern
// declares a capture group the search resumes right after the captured text,
// so a boundary character consumed by one match can still open the next one;
// capture-free patterns use plain non-overlapping counting.
func (s *Signature) count(content string) int {
	if s.re.NumSubexp() == 0 {
		return len(s.re.FindAllStringIndex(content, -1))
	}

	count, pos := 0, 0
	for pos <= len(content) {
		loc := s.re.FindStringSubmatchIndex(content[pos:])
		if loc == nil {
			break
		}
		count++
		next := loc[3]
		if next <= 0 {
			next = loc[1]
		}
		if next <= 0 {
			break
		}
		pos += next
	}
	return count
}

func (s *Signature) compile() error {
	if s.Label == "" {
		return fmt.Errorf("signature with pattern %q has no label", s.Pattern)
	}
	re, err := regexp.Compile(s.Pattern)
	if err != nil {
		return fmt.Errorf("signature %s has invalid pattern: %w", s.Label, err)
	}
	s.re = re
	return nil
}
