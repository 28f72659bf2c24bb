package usecase

import (
	cardlink "github.com/cardlink-app/cardlink-web"
	"github.com/cardlink-app/cardlink-web/internal/domain"
)

// BuildPreview computes the editor's live preview. Unlike the public
// renderer it is never gated and uses relaxed presence: the user must see
// what they typed even when it looks like canned content. Until the first
// save, empty fields fall back to placeholders so the canvas never looks
// broken; the hero swap applies only once a document exists, same as the
// public page will show it.
func BuildPreview(d domain.DraftState, hasDocument bool) RenderState {
	ph := cardlink.DefaultPlaceholders()

	cover := cardlink.ResolveField(displayURL(d.CoverPhoto), ph.CoverPhoto, hasDocument)
	work := displayWorkImages(d.WorkImages)
	if !hasDocument && len(work) == 0 {
		work = append([]string(nil), ph.WorkImages...)
	}
	hero, gallery := cardlink.DeriveHero(cover, work, hasDocument)

	sections := []Section{
		{Key: cardlink.SectionMain, Main: &MainSection{
			CoverPhoto:  hero,
			MainHeading: cardlink.ResolveField(d.MainHeading, ph.MainHeading, hasDocument),
			SubHeading:  cardlink.ResolveField(d.SubHeading, ph.SubHeading, hasDocument),
			ShowContact: d.Email != "" || d.Phone != "",
		}},
		{Key: cardlink.SectionAbout, About: &AboutSection{
			Avatar:   cardlink.ResolveField(displayURL(d.Avatar), ph.Avatar, hasDocument),
			FullName: cardlink.ResolveField(d.FullName, ph.FullName, hasDocument),
			JobTitle: cardlink.ResolveField(d.JobTitle, ph.JobTitle, hasDocument),
			Bio:      cardlink.ResolveField(d.Bio, ph.Bio, hasDocument),
			Layout:   d.AboutLayout,
		}},
		{Key: cardlink.SectionWork, Work: &WorkSection{
			Images:  gallery,
			Display: d.WorkDisplay,
		}},
		{Key: cardlink.SectionServices, Services: &ServicesSection{
			Entries: append([]cardlink.ServiceEntry(nil), d.Services...),
			Display: d.ServicesDisplay,
		}},
		{Key: cardlink.SectionReviews, Reviews: &ReviewsSection{
			Entries: append([]cardlink.ReviewEntry(nil), d.Reviews...),
			Display: d.ReviewsDisplay,
		}},
		{Key: cardlink.SectionContact, Contact: &ContactSection{
			Email:  d.Email,
			Phone:  d.Phone,
			Social: d.Social,
		}},
	}

	ordered := make([]Section, 0, len(sections))
	for _, key := range cardlink.NormalizeSectionOrder(d.SectionOrder) {
		for _, s := range sections {
			if s.Key == key && sectionVisible(d.Visibility, key) {
				ordered = append(ordered, s)
			}
		}
	}

	return RenderState{
		Phase:       PhaseLive,
		Theme:       d.Theme,
		Font:        d.Font,
		Alignment:   d.Alignment,
		ButtonColor: d.ButtonColor,
		Sections:    ordered,
	}
}

func sectionVisible(v cardlink.SectionVisibility, key cardlink.SectionKey) bool {
	switch key {
	case cardlink.SectionMain:
		return v.Main
	case cardlink.SectionAbout:
		return v.About
	case cardlink.SectionWork:
		return v.Work
	case cardlink.SectionServices:
		return v.Services
	case cardlink.SectionReviews:
		return v.Reviews
	case cardlink.SectionContact:
		return v.Contact
	}
	return false
}
