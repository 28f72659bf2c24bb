package cardlink

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Normalize folds a raw server document into the canonical shape. Historical
// documents use several generations of field names; every read goes through
// pick so the alias priority lives in exactly one place. A partial or legacy
// document is never an error here.
func Normalize(raw []byte) (*BusinessCardDocument, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Wrap(err, "cardlink: malformed document")
	}

	doc := &BusinessCardDocument{
		OwnerID: pickString(fields, "user_id", "userId", "owner"),
		Slug:    pickString(fields, "slug", "handle", "username"),

		Theme:       Theme(pickString(fields, "page_theme", "pageTheme", "theme")),
		Font:        Font(pickString(fields, "font", "font_family", "fontFamily")),
		Alignment:   Alignment(pickString(fields, "text_alignment", "textAlignment", "alignment")),
		ButtonColor: pickString(fields, "button_color", "buttonColor"),
		AboutLayout: AboutLayout(pickString(fields, "about_layout", "aboutLayout", "about_me_layout")),

		CoverPhoto:  pickString(fields, "cover_photo", "coverPhoto", "cover_image", "coverImage"),
		MainHeading: pickString(fields, "main_heading", "mainHeading", "heading"),
		SubHeading:  pickString(fields, "sub_heading", "subHeading", "subheading"),

		Avatar:   pickString(fields, "avatar", "profile_photo", "profilePhoto", "profile_image"),
		FullName: pickString(fields, "full_name", "fullName", "name"),
		JobTitle: pickString(fields, "job_title", "jobTitle", "profession"),
		Bio:      pickString(fields, "bio", "about_me", "aboutMe"),

		WorkImages:  pickStrings(fields, "works", "work_images", "workImages"),
		WorkDisplay: DisplayMode(pickString(fields, "work_display_mode", "workDisplayMode", "works_display")),

		Services:        normalizeServices(pickRaw(fields, "services")),
		ServicesDisplay: DisplayMode(pickString(fields, "services_display_mode", "servicesDisplayMode")),

		Reviews:        normalizeReviews(pickRaw(fields, "reviews", "testimonials")),
		ReviewsDisplay: DisplayMode(pickString(fields, "reviews_display_mode", "reviewsDisplayMode")),

		Email:  pickString(fields, "contact_email", "contactEmail", "email"),
		Phone:  pickString(fields, "contact_phone", "contactPhone", "phone", "phone_number"),
		Social: normalizeSocial(fields),

		Visibility: SectionVisibility{
			Main:     pickBool(fields, true, "show_main_section", "showMainSection"),
			About:    pickBool(fields, true, "show_about_section", "showAboutSection"),
			Work:     pickBool(fields, true, "show_work_section", "showWorkSection"),
			Services: pickBool(fields, true, "show_services_section", "showServicesSection"),
			Reviews:  pickBool(fields, true, "show_reviews_section", "showReviewsSection"),
			Contact:  pickBool(fields, true, "show_contact_section", "showContactSection"),
		},

		IsSubscribed: pickBool(fields, false, "is_subscribed", "isSubscribed", "subscribed"),
		TrialExpires: pickTime(fields, "trial_expires", "trialExpires", "trial_expires_at"),
	}

	order := make([]SectionKey, 0, 6)
	for _, s := range pickStrings(fields, "section_order", "sectionOrder", "sections") {
		order = append(order, SectionKey(s))
	}
	doc.SectionOrder = NormalizeSectionOrder(order)

	doc.Theme = normalizeTheme(doc.Theme)
	doc.Font = normalizeFont(doc.Font)
	doc.Alignment = normalizeAlignment(doc.Alignment)
	doc.AboutLayout = normalizeAboutLayout(doc.AboutLayout)
	doc.WorkDisplay = normalizeDisplay(doc.WorkDisplay, true)
	doc.ServicesDisplay = normalizeDisplay(doc.ServicesDisplay, false)
	doc.ReviewsDisplay = normalizeDisplay(doc.ReviewsDisplay, false)

	for i := range doc.Reviews {
		doc.Reviews[i].Rating = ClampRating(doc.Reviews[i].Rating)
	}

	return doc, nil
}

// NormalizeSectionOrder drops unknown keys and duplicates, falling back to the
// default order when nothing valid remains.
func NormalizeSectionOrder(order []SectionKey) []SectionKey {
	known := map[SectionKey]bool{
		SectionMain: true, SectionAbout: true, SectionWork: true,
		SectionServices: true, SectionReviews: true, SectionContact: true,
	}
	out := make([]SectionKey, 0, len(order))
	seen := map[SectionKey]bool{}
	for _, k := range order {
		if known[k] && !seen[k] {
			out = append(out, k)
			seen[k] = true
		}
	}
	if len(out) == 0 {
		return DefaultSectionOrder()
	}
	return out
}

// ClampRating forces a review rating into [0,5].
func ClampRating(r int) int {
	if r < MinRating {
		return MinRating
	}
	if r > MaxRating {
		return MaxRating
	}
	return r
}

// normalizeSocial reads links from a nested social object when the document
// carries one, falling back to the older flat top-level fields.
func normalizeSocial(fields map[string]json.RawMessage) SocialLinks {
	scope := fields
	if raw := pickRaw(fields, "social", "social_links", "socialLinks"); raw != nil {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err == nil {
			scope = nested
		}
	}
	return SocialLinks{
		Facebook:  pickString(scope, "facebook_url", "facebook"),
		Instagram: pickString(scope, "instagram_url", "instagram"),
		LinkedIn:  pickString(scope, "linkedin_url", "linkedin"),
		X:         pickString(scope, "x_url", "twitter_url", "twitter"),
		TikTok:    pickString(scope, "tiktok_url", "tiktok"),
	}
}

func normalizeServices(raw json.RawMessage) []ServiceEntry {
	if raw == nil {
		return nil
	}
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]ServiceEntry, 0, len(items))
	for _, item := range items {
		out = append(out, ServiceEntry{
			Name:  pickString(item, "name", "title"),
			Price: pickString(item, "price", "cost"),
		})
	}
	return out
}

func normalizeReviews(raw json.RawMessage) []ReviewEntry {
	if raw == nil {
		return nil
	}
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]ReviewEntry, 0, len(items))
	for _, item := range items {
		out = append(out, ReviewEntry{
			Name:   pickString(item, "name", "author"),
			Text:   pickString(item, "text", "content", "comment"),
			Rating: ClampRating(pickInt(item, "rating", "stars")),
		})
	}
	return out
}

// pickRaw returns the first present (non-null) value among the given names.
// This is the one lookup every legacy-tolerant read funnels through.
func pickRaw(fields map[string]json.RawMessage, names ...string) json.RawMessage {
	for _, name := range names {
		if v, ok := fields[name]; ok && len(v) > 0 && string(v) != "null" {
			return v
		}
	}
	return nil
}

func pickString(fields map[string]json.RawMessage, names ...string) string {
	raw := pickRaw(fields, names...)
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func pickBool(fields map[string]json.RawMessage, fallback bool, names ...string) bool {
	raw := pickRaw(fields, names...)
	if raw == nil {
		return fallback
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	// some legacy documents store flags as "true"/"false" strings
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.EqualFold(s, "true")
	}
	return fallback
}

func pickInt(fields map[string]json.RawMessage, names ...string) int {
	raw := pickRaw(fields, names...)
	if raw == nil {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		var f float64
		if err := json.Unmarshal([]byte(s), &f); err == nil {
			return int(f)
		}
	}
	return 0
}

func pickStrings(fields map[string]json.RawMessage, names ...string) []string {
	raw := pickRaw(fields, names...)
	if raw == nil {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// pickTime accepts RFC3339 strings and unix-millisecond numbers.
func pickTime(fields map[string]json.RawMessage, names ...string) time.Time {
	raw := pickRaw(fields, names...)
	if raw == nil {
		return time.Time{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
		return time.Time{}
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}

func normalizeTheme(t Theme) Theme {
	switch t {
	case ThemeLight, ThemeDark:
		return t
	}
	return ThemeLight
}

func normalizeFont(f Font) Font {
	switch f {
	case FontInter, FontPoppins, FontRoboto, FontPlayfair, FontMontserrat:
		return f
	}
	return FontInter
}

func normalizeAlignment(a Alignment) Alignment {
	switch a {
	case AlignLeft, AlignCenter, AlignRight:
		return a
	}
	return AlignCenter
}

func normalizeAboutLayout(l AboutLayout) AboutLayout {
	switch l {
	case AboutSideBySide, AboutStacked:
		return l
	}
	return AboutSideBySide
}

func normalizeDisplay(m DisplayMode, allowGrid bool) DisplayMode {
	switch m {
	case DisplayList, DisplayCarousel:
		return m
	case DisplayGrid:
		if allowGrid {
			return m
		}
	}
	return DisplayList
}
