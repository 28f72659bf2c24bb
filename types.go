package cardlink

import (
	"time"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

type Font string

const (
	FontInter      Font = "inter"
	FontPoppins    Font = "poppins"
	FontRoboto     Font = "roboto"
	FontPlayfair   Font = "playfair"
	FontMontserrat Font = "montserrat"
)

type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

type AboutLayout string

const (
	AboutSideBySide AboutLayout = "side-by-side"
	AboutStacked    AboutLayout = "stacked"
)

type DisplayMode string

const (
	DisplayList     DisplayMode = "list"
	DisplayGrid     DisplayMode = "grid"
	DisplayCarousel DisplayMode = "carousel"
)

type SectionKey string

const (
	SectionMain     SectionKey = "main"
	SectionAbout    SectionKey = "about"
	SectionWork     SectionKey = "work"
	SectionServices SectionKey = "services"
	SectionReviews  SectionKey = "reviews"
	SectionContact  SectionKey = "contact"
)

// DefaultSectionOrder is the canonical order used when a document carries no
// valid section_order of its own.
func DefaultSectionOrder() []SectionKey {
	return []SectionKey{
		SectionMain,
		SectionAbout,
		SectionWork,
		SectionServices,
		SectionReviews,
		SectionContact,
	}
}

const (
	MinRating = 0
	MaxRating = 5
)

type ServiceEntry struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

type ReviewEntry struct {
	Name   string `json:"name"`
	Text   string `json:"text"`
	Rating int    `json:"rating"`
}

type SocialLinks struct {
	Facebook  string `json:"facebook_url,omitempty"`
	Instagram string `json:"instagram_url,omitempty"`
	LinkedIn  string `json:"linkedin_url,omitempty"`
	X         string `json:"x_url,omitempty"`
	TikTok    string `json:"tiktok_url,omitempty"`
}

type SectionVisibility struct {
	Main     bool `json:"show_main_section"`
	About    bool `json:"show_about_section"`
	Work     bool `json:"show_work_section"`
	Services bool `json:"show_services_section"`
	Reviews  bool `json:"show_reviews_section"`
	Contact  bool `json:"show_contact_section"`
}

// AllVisible is the default for freshly created documents.
func AllVisible() SectionVisibility {
	return SectionVisibility{Main: true, About: true, Work: true, Services: true, Reviews: true, Contact: true}
}

// BusinessCardDocument is the canonical, normalized shape of a card as the
// rest of the codebase reads it. Heterogeneous historical documents are folded
// into this shape exactly once, at fetch time, by Normalize.
type BusinessCardDocument struct {
	OwnerID string `json:"user_id"`
	Slug    string `json:"slug,omitempty"`

	Theme       Theme       `json:"page_theme"`
	Font        Font        `json:"font"`
	Alignment   Alignment   `json:"text_alignment"`
	ButtonColor string      `json:"button_color,omitempty"`
	AboutLayout AboutLayout `json:"about_layout"`

	CoverPhoto  string `json:"cover_photo,omitempty"`
	MainHeading string `json:"main_heading,omitempty"`
	SubHeading  string `json:"sub_heading,omitempty"`

	Avatar   string `json:"avatar,omitempty"`
	FullName string `json:"full_name,omitempty"`
	JobTitle string `json:"job_title,omitempty"`
	Bio      string `json:"bio,omitempty"`

	WorkImages  []string    `json:"works"`
	WorkDisplay DisplayMode `json:"work_display_mode"`

	Services        []ServiceEntry `json:"services"`
	ServicesDisplay DisplayMode    `json:"services_display_mode"`

	Reviews        []ReviewEntry `json:"reviews"`
	ReviewsDisplay DisplayMode   `json:"reviews_display_mode"`

	Email  string      `json:"contact_email,omitempty"`
	Phone  string      `json:"contact_phone,omitempty"`
	Social SocialLinks `json:"social,omitempty"`

	Visibility   SectionVisibility `json:"visibility"`
	SectionOrder []SectionKey      `json:"section_order"`

	IsSubscribed bool      `json:"is_subscribed"`
	TrialExpires time.Time `json:"trial_expires,omitempty"`
}

// PubliclyVisible reports whether the card may be served on its public page:
// either an active subscription or an unexpired trial.
func (d *BusinessCardDocument) PubliclyVisible(now time.Time) bool {
	if d.IsSubscribed {
		return true
	}
	return !d.TrialExpires.IsZero() && d.TrialExpires.After(now)
}

// HasTrialExpired distinguishes "never published" from "access ran out".
func (d *BusinessCardDocument) HasTrialExpired(now time.Time) bool {
	return !d.TrialExpires.IsZero() && !d.TrialExpires.After(now)
}
