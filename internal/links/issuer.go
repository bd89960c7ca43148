package links

import (
	"context"
	"strings"
	"time"

	"github.com/badrabdoph/sitekeeper/internal/common"
	"github.com/badrabdoph/sitekeeper/internal/content"
	"github.com/badrabdoph/sitekeeper/internal/logging"
	"github.com/badrabdoph/sitekeeper/internal/store"
)

// maxIssueAttempts caps regeneration when a freshly generated code
// collides with an existing one.
const maxIssueAttempts = 5

// CodeResult is the normalized outcome of verifying a short code of either
// family.
type CodeResult struct {
	Valid     bool       `json:"valid"`
	Legacy    bool       `json:"legacy,omitempty"`
	Revoked   bool       `json:"revoked,omitempty"`
	Expired   bool       `json:"expired,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Issuer issues and verifies share-link credentials: stateless long
// tokens, and short codes backed by the share-link collection with the
// legacy HMAC scheme accepted for verification.
type Issuer struct {
	links   *store.Collection[content.ShareLink, *content.ShareLink]
	tokens  *TokenIssuer
	secret  string
	prefix  string
	codeLen int
	genCode func() (string, error)
	now     func() time.Time
	log     logging.Logger
}

// NewIssuer creates an issuer over the given share-link collection.
func NewIssuer(linkStore *store.Collection[content.ShareLink, *content.ShareLink], secret, prefix string, codeLen int, tokenTTL time.Duration, log logging.Logger) *Issuer {
	i := &Issuer{
		links:   linkStore,
		tokens:  NewTokenIssuer(secret, tokenTTL),
		secret:  secret,
		prefix:  prefix,
		codeLen: codeLen,
		now:     time.Now,
		log:     log.With("module", "links"),
	}
	i.genCode = func() (string, error) {
		return common.MakeRandString(codeAlphabet, codeLen)
	}
	return i
}

// IssueToken mints a stateless signed long token.
func (i *Issuer) IssueToken() (string, time.Time, error) {
	return i.tokens.Issue()
}

// VerifyToken validates a stateless long token.
func (i *Issuer) VerifyToken(token string) TokenResult {
	return i.tokens.Verify(token)
}

// IssueCode persists a new revocable short code. A nil expiresAt denotes a
// permanent link. Generation is retried up to the attempt cap when the
// fresh code collides with an existing unique code.
func (i *Issuer) IssueCode(ctx context.Context, expiresAt *time.Time, note string) (*content.ShareLink, error) {
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		code, err := i.genCode()
		if err != nil {
			return nil, err
		}
		if i.links.GetByKey(ctx, code) != nil {
			i.log.Warn(ctx, "share code collision, regenerating", "attempt", attempt+1)
			continue
		}
		return i.links.Create(ctx, &content.ShareLink{
			Code:      code,
			Note:      note,
			ExpiresAt: expiresAt,
		})
	}
	return nil, common.ErrCodeCollision
}

// Verify checks a short code of either family. Signature recomputation is
// tried first; the record lookup is the fallback when the signature scheme
// does not match. A bare code in the store-backed format with no record is
// accepted opportunistically as legacy-valid with no expiry.
func (i *Issuer) Verify(ctx context.Context, code string) CodeResult {
	if strings.HasPrefix(code, i.prefix+"-") {
		legacy := VerifyLegacy(i.secret, i.prefix, code, i.now())
		if !legacy.SigValid {
			return CodeResult{}
		}
		expiresAt := legacy.ExpiresAt
		return CodeResult{
			Valid:     !legacy.Expired,
			Legacy:    true,
			Expired:   legacy.Expired,
			ExpiresAt: &expiresAt,
		}
	}

	record := i.links.GetByKey(ctx, code)
	if record == nil {
		if isBareCode(code, i.codeLen) {
			return CodeResult{Valid: true, Legacy: true}
		}
		return CodeResult{}
	}
	if record.RevokedAt != nil {
		return CodeResult{Revoked: true, ExpiresAt: record.ExpiresAt}
	}
	if record.ExpiresAt != nil && i.now().After(*record.ExpiresAt) {
		return CodeResult{Expired: true, ExpiresAt: record.ExpiresAt}
	}
	return CodeResult{Valid: true, ExpiresAt: record.ExpiresAt}
}

// Extend replaces the expiry of a non-revoked, finite-expiry record with
// now+hours. Permanent links and revoked links cannot be extended.
func (i *Issuer) Extend(ctx context.Context, code string, hours int) (*content.ShareLink, error) {
	record := i.links.GetByKey(ctx, code)
	if record == nil {
		return nil, common.ErrNotFound
	}
	if record.RevokedAt != nil {
		return nil, common.ErrLinkRevoked
	}
	if record.ExpiresAt == nil {
		return nil, common.ErrLinkPermanent
	}

	expiresAt := i.now().Add(time.Duration(hours) * time.Hour)
	return i.links.Update(ctx, record.ID, func(l *content.ShareLink) {
		l.ExpiresAt = &expiresAt
	})
}

// Revoke sets RevokedAt if not already set. Idempotent: revoking a revoked
// code is a no-op.
func (i *Issuer) Revoke(ctx context.Context, code string) (*content.ShareLink, error) {
	record := i.links.GetByKey(ctx, code)
	if record == nil {
		return nil, common.ErrNotFound
	}
	if record.RevokedAt != nil {
		return record, nil
	}

	revokedAt := i.now()
	return i.links.Update(ctx, record.ID, func(l *content.ShareLink) {
		l.RevokedAt = &revokedAt
	})
}

// List returns all share-link records.
func (i *Issuer) List(ctx context.Context) []*content.ShareLink {
	return i.links.List(ctx)
}
