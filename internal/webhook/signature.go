package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/jiralink/jiralink/internal/faults"
)

const signaturePrefix = "sha256="

// VerifySignature checks a GitHub X-Hub-Signature-256 header against the
// raw request body. The header carries "sha256=" followed by the hex HMAC
// of the body keyed with the shared webhook secret.
func VerifySignature(secret string, body []byte, header string) error {
	if secret == "" {
		return faults.ErrSignatureInvalid
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return faults.ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(header, signaturePrefix))) {
		return faults.ErrSignatureInvalid
	}
	return nil
}
