package links

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// codeAlphabet is the fixed alphabet both short-code generations draw from.
const codeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

const legacySigLen = 6

var bareCodePattern = regexp.MustCompile("^[a-z0-9]+$")

// LegacyResult reports the two independent facts about a legacy code: the
// signature check and the expiry check. A code past its encoded expiry
// still reports SigValid=true.
type LegacyResult struct {
	SigValid  bool
	Expired   bool
	ExpiresAt time.Time
}

// MakeLegacyCode builds a stateless signed short code:
// payload = base-36 expiry instant (ms), signature = first 6 characters of
// the base64url HMAC-SHA256 digest of the payload under secret, final form
// "prefix-payload.signature".
func MakeLegacyCode(secret, prefix string, expiresAt time.Time) string {
	payload := strconv.FormatInt(expiresAt.UnixMilli(), 36)
	return prefix + "-" + payload + "." + legacySignature(secret, payload)
}

func legacySignature(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))[:legacySigLen]
}

// VerifyLegacy recomputes the signature from the embedded payload with no
// record lookup. now decides the expiry check.
func VerifyLegacy(secret, prefix, code string, now time.Time) LegacyResult {
	body, ok := strings.CutPrefix(code, prefix+"-")
	if !ok {
		return LegacyResult{}
	}
	payload, sig, ok := strings.Cut(body, ".")
	if !ok {
		return LegacyResult{}
	}
	if !hmac.Equal([]byte(sig), []byte(legacySignature(secret, payload))) {
		return LegacyResult{}
	}
	ms, err := strconv.ParseInt(payload, 36, 64)
	if err != nil {
		return LegacyResult{}
	}
	expiresAt := time.UnixMilli(ms)
	return LegacyResult{
		SigValid:  true,
		Expired:   now.After(expiresAt),
		ExpiresAt: expiresAt,
	}
}

// isBareCode reports whether code matches the fixed alphabet/length pattern
// of the store-backed generation without any prefix or signature.
func isBareCode(code string, length int) bool {
	return len(code) == length && bareCodePattern.MatchString(code)
}
