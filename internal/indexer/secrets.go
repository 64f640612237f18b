package indexer

import (
	"fmt"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// secretScanner reports whether content contains detected secrets. Chunks
// with findings are withheld from the corpus entirely; redaction is not
// attempted because a partially redacted passage still leaks structure.
type secretScanner struct {
	detector *detect.Detector
}

// newSecretScanner builds a scanner with the default gitleaks ruleset
// (several hundred vendor-specific and generic patterns).
func newSecretScanner() (*secretScanner, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("creating secret detector: %w", err)
	}
	return &secretScanner{detector: detector}, nil
}

// hasSecrets reports whether any rule matches the content.
func (s *secretScanner) hasSecrets(content string) bool {
	return len(s.detector.DetectString(content)) > 0
}
