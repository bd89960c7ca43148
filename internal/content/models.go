// Package content defines the entity types persisted by the document store:
// one collection file per type under the data directory.
package content

import (
	"time"

	"github.com/badrabdoph/sitekeeper/internal/store"
)

// Collection file names.
const (
	TextFile         = "text.json"
	ImagesFile       = "images.json"
	PortfolioFile    = "portfolio.json"
	SectionsFile     = "sections.json"
	PackagesFile     = "packages.json"
	TestimonialsFile = "testimonials.json"
	ContactFile      = "contact.json"
	ShareLinksFile   = "share-links.json"
	HistoryFile      = "package-history.json"
)

// TextField is one editable text snippet, addressed by key.
type TextField struct {
	store.Meta
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (t *TextField) DocKey() string { return t.Key }

// Image is one editable image slot, addressed by key.
type Image struct {
	store.Meta
	Key string `json:"key"`
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

func (i *Image) DocKey() string { return i.Key }

// ContactField is one editable contact detail, addressed by key.
type ContactField struct {
	store.Meta
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (c *ContactField) DocKey() string { return c.Key }

// SectionFlag toggles the visibility of one page section, addressed by key.
type SectionFlag struct {
	store.Meta
	Key     string `json:"key"`
	Visible bool   `json:"visible"`
}

func (s *SectionFlag) DocKey() string { return s.Key }

// PortfolioItem is one entry of the portfolio gallery.
type PortfolioItem struct {
	store.Meta
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	SortOrder   int    `json:"sortOrder"`
	Visible     bool   `json:"visible"`
}

func (p *PortfolioItem) Order() int { return p.SortOrder }

// Package is one service package offered on the site. Package mutations are
// the only ones recorded in the history ledger.
type Package struct {
	store.Meta
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       string   `json:"price,omitempty"`
	Features    []string `json:"features,omitempty"`
	SortOrder   int      `json:"sortOrder"`
	Visible     bool     `json:"visible"`
}

func (p *Package) Order() int { return p.SortOrder }

// Clone returns a copy sharing no backing storage with p. History
// snapshots are cloned so later mutations of the live row can never
// rewrite them.
func (p *Package) Clone() Package {
	out := *p
	out.Features = append([]string(nil), p.Features...)
	return out
}

// Testimonial is one customer quote.
type Testimonial struct {
	store.Meta
	Author    string `json:"author"`
	Quote     string `json:"quote"`
	Rating    int    `json:"rating,omitempty"`
	SortOrder int    `json:"sortOrder"`
	Visible   bool   `json:"visible"`
}

func (t *Testimonial) Order() int { return t.SortOrder }

// ShareLink is the record backing one revocable short code. A nil ExpiresAt
// denotes a permanent link; a non-nil RevokedAt permanently invalidates the
// code regardless of expiry.
type ShareLink struct {
	store.Meta
	Code      string     `json:"code"`
	Note      string     `json:"note,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
}

func (s *ShareLink) DocKey() string { return s.Code }
