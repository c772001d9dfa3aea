package pipeline

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/jnsofini/auto-scorecard/internal/config"
)

// ConfigHash returns a SHA-256 prefix of the fit settings so runs can be
// matched to the configuration that produced them.
func ConfigHash(sc config.Scorecard) string {
	data, err := json.Marshal(sc)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:16]) // 32 hex chars
}
