package usecase

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	cardlink "github.com/cardlink-app/cardlink-web"
	"github.com/cardlink-app/cardlink-web/internal/domain"
)

var tracer = otel.Tracer("usecase")

// Phase is where a profile sits in its render lifecycle.
type Phase string

const (
	PhaseLoading  Phase = "loading"
	PhaseNotFound Phase = "not_found"
	PhaseGated    Phase = "gated"
	PhaseEmpty    Phase = "empty"
	PhaseLive     Phase = "live"
)

// GateReason distinguishes the two gated fallbacks.
type GateReason string

const (
	GateNotPublished GateReason = "not_published"
	GateExpired      GateReason = "expired"
)

type MainSection struct {
	CoverPhoto  string `json:"cover_photo,omitempty"`
	MainHeading string `json:"main_heading,omitempty"`
	SubHeading  string `json:"sub_heading,omitempty"`
	ShowContact bool   `json:"show_contact_button"`
}

type AboutSection struct {
	Avatar   string               `json:"avatar,omitempty"`
	FullName string               `json:"full_name,omitempty"`
	JobTitle string               `json:"job_title,omitempty"`
	Bio      string               `json:"bio,omitempty"`
	Layout   cardlink.AboutLayout `json:"layout"`
}

type WorkSection struct {
	Images  []string             `json:"images"`
	Display cardlink.DisplayMode `json:"display"`
}

type ServicesSection struct {
	Entries []cardlink.ServiceEntry `json:"entries"`
	Display cardlink.DisplayMode    `json:"display"`
}

type ReviewsSection struct {
	Entries []cardlink.ReviewEntry `json:"entries"`
	Display cardlink.DisplayMode   `json:"display"`
}

type ContactSection struct {
	Email  string               `json:"email,omitempty"`
	Phone  string               `json:"phone,omitempty"`
	Social cardlink.SocialLinks `json:"social"`
}

// Section carries one qualified section; exactly one payload pointer is set,
// matching Key.
type Section struct {
	Key      cardlink.SectionKey `json:"key"`
	Main     *MainSection        `json:"main,omitempty"`
	About    *AboutSection       `json:"about,omitempty"`
	Work     *WorkSection        `json:"work,omitempty"`
	Services *ServicesSection    `json:"services,omitempty"`
	Reviews  *ReviewsSection     `json:"reviews,omitempty"`
	Contact  *ContactSection     `json:"contact,omitempty"`
}

// RenderState is what the view layer consumes: a phase, and for the live
// phase the styling plus the qualified sections in document order.
type RenderState struct {
	Phase  Phase      `json:"phase"`
	Reason GateReason `json:"reason,omitempty"`

	Theme       cardlink.Theme     `json:"theme,omitempty"`
	Font        cardlink.Font      `json:"font,omitempty"`
	Alignment   cardlink.Alignment `json:"alignment,omitempty"`
	ButtonColor string             `json:"button_color,omitempty"`

	Sections []Section `json:"sections,omitempty"`
}

// BuildRenderState walks the document lifecycle: missing, gated, empty, or
// live with each section qualified independently. A section later in the
// order is never suppressed by an earlier one being empty.
func BuildRenderState(doc *cardlink.BusinessCardDocument, now time.Time) RenderState {
	if doc == nil {
		return RenderState{Phase: PhaseNotFound}
	}
	if !doc.PubliclyVisible(now) {
		reason := GateNotPublished
		if doc.HasTrialExpired(now) {
			reason = GateExpired
		}
		return RenderState{Phase: PhaseGated, Reason: reason}
	}

	sections := qualifySections(doc)
	if len(sections) == 0 {
		return RenderState{Phase: PhaseEmpty}
	}

	return RenderState{
		Phase:       PhaseLive,
		Theme:       doc.Theme,
		Font:        doc.Font,
		Alignment:   doc.Alignment,
		ButtonColor: doc.ButtonColor,
		Sections:    sections,
	}
}

func qualifySections(doc *cardlink.BusinessCardDocument) []Section {
	// the hero swap feeds both the main and work sections, so it is derived
	// once before qualification
	hero, gallery := cardlink.DeriveHero(presentOrEmpty(doc.CoverPhoto), filterPresent(doc.WorkImages), true)

	var out []Section
	for _, key := range cardlink.NormalizeSectionOrder(doc.SectionOrder) {
		if s, ok := qualifySection(doc, key, hero, gallery); ok {
			out = append(out, s)
		}
	}
	return out
}

func qualifySection(doc *cardlink.BusinessCardDocument, key cardlink.SectionKey, hero string, gallery []string) (Section, bool) {
	switch key {
	case cardlink.SectionMain:
		if !doc.Visibility.Main {
			return Section{}, false
		}
		hasContact := cardlink.Present(doc.Email) || cardlink.Present(doc.Phone)
		if hero == "" && !cardlink.Present(doc.MainHeading) &&
			!cardlink.Present(doc.SubHeading) && !hasContact {
			return Section{}, false
		}
		return Section{Key: key, Main: &MainSection{
			CoverPhoto:  hero,
			MainHeading: presentOrEmpty(doc.MainHeading),
			SubHeading:  presentOrEmpty(doc.SubHeading),
			ShowContact: hasContact,
		}}, true

	case cardlink.SectionAbout:
		if !doc.Visibility.About {
			return Section{}, false
		}
		if !cardlink.Present(doc.Avatar) && !cardlink.Present(doc.FullName) &&
			!cardlink.Present(doc.JobTitle) && !cardlink.Present(doc.Bio) {
			return Section{}, false
		}
		return Section{Key: key, About: &AboutSection{
			Avatar:   presentOrEmpty(doc.Avatar),
			FullName: presentOrEmpty(doc.FullName),
			JobTitle: presentOrEmpty(doc.JobTitle),
			Bio:      presentOrEmpty(doc.Bio),
			Layout:   doc.AboutLayout,
		}}, true

	case cardlink.SectionWork:
		if !doc.Visibility.Work {
			return Section{}, false
		}
		if len(gallery) == 0 {
			return Section{}, false
		}
		return Section{Key: key, Work: &WorkSection{
			Images:  gallery,
			Display: doc.WorkDisplay,
		}}, true

	case cardlink.SectionServices:
		if !doc.Visibility.Services {
			return Section{}, false
		}
		entries := make([]cardlink.ServiceEntry, 0, len(doc.Services))
		for _, s := range doc.Services {
			if cardlink.Present(s.Name) || cardlink.Present(s.Price) {
				entries = append(entries, s)
			}
		}
		if len(entries) == 0 {
			return Section{}, false
		}
		return Section{Key: key, Services: &ServicesSection{
			Entries: entries,
			Display: doc.ServicesDisplay,
		}}, true

	case cardlink.SectionReviews:
		if !doc.Visibility.Reviews {
			return Section{}, false
		}
		entries := make([]cardlink.ReviewEntry, 0, len(doc.Reviews))
		for _, r := range doc.Reviews {
			if cardlink.Present(r.Name) || cardlink.Present(r.Text) || r.Rating > 0 {
				entries = append(entries, r)
			}
		}
		if len(entries) == 0 {
			return Section{}, false
		}
		return Section{Key: key, Reviews: &ReviewsSection{
			Entries: entries,
			Display: doc.ReviewsDisplay,
		}}, true

	case cardlink.SectionContact:
		if !doc.Visibility.Contact {
			return Section{}, false
		}
		// social links render inside the section but cannot qualify it
		if !cardlink.Present(doc.Email) && !cardlink.Present(doc.Phone) {
			return Section{}, false
		}
		return Section{Key: key, Contact: &ContactSection{
			Email:  presentOrEmpty(doc.Email),
			Phone:  presentOrEmpty(doc.Phone),
			Social: doc.Social,
		}}, true
	}
	return Section{}, false
}

func presentOrEmpty(v string) string {
	if cardlink.Present(v) {
		return v
	}
	return ""
}

func filterPresent(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if cardlink.Present(v) {
			out = append(out, v)
		}
	}
	return out
}

// ProfileUsecase serves the public profile path.
type ProfileUsecase struct {
	repo CardRepository
	now  func() time.Time
}

func NewProfileUsecase(repo CardRepository) *ProfileUsecase {
	return &ProfileUsecase{repo: repo, now: time.Now}
}

// RenderPublic fetches a card by slug and computes its render state. Absence
// yields the not-found state, not an error; transient failures propagate so
// the handler can answer 502 instead of caching a wrong "no card" page.
func (u *ProfileUsecase) RenderPublic(ctx context.Context, slug string) (RenderState, error) {
	ctx, span := tracer.Start(ctx, "Profile.RenderPublic")
	defer span.End()

	doc, err := u.repo.FetchPublic(ctx, slug)
	if err != nil {
		if domain.IsTransient(err) {
			return RenderState{Phase: PhaseLoading}, err
		}
		return RenderState{}, err
	}
	return BuildRenderState(doc, u.now()), nil
}
