package usecase

import (
	cardlink "github.com/cardlink-app/cardlink-web"
	"github.com/cardlink-app/cardlink-web/internal/domain"
)

// persistedProjection is the persisted-equivalent view of a draft: exactly
// the fields a save would write, with image slots reduced to their durable
// URLs. Pending handles are excluded on purpose; HasPendingFiles covers them
// separately, and a handle's random identity must never make two otherwise
// equal drafts compare unequal.
type persistedProjection struct {
	Theme       cardlink.Theme       `json:"page_theme"`
	Font        cardlink.Font        `json:"font"`
	Alignment   cardlink.Alignment   `json:"text_alignment"`
	ButtonColor string               `json:"button_color"`
	AboutLayout cardlink.AboutLayout `json:"about_layout"`

	CoverPhoto  string `json:"cover_photo"`
	MainHeading string `json:"main_heading"`
	SubHeading  string `json:"sub_heading"`

	Avatar   string `json:"avatar"`
	FullName string `json:"full_name"`
	JobTitle string `json:"job_title"`
	Bio      string `json:"bio"`

	WorkImages  []string             `json:"works"`
	WorkDisplay cardlink.DisplayMode `json:"work_display_mode"`

	Services        []cardlink.ServiceEntry `json:"services"`
	ServicesDisplay cardlink.DisplayMode    `json:"services_display_mode"`

	Reviews        []cardlink.ReviewEntry `json:"reviews"`
	ReviewsDisplay cardlink.DisplayMode   `json:"reviews_display_mode"`

	Email  string               `json:"contact_email"`
	Phone  string               `json:"contact_phone"`
	Social cardlink.SocialLinks `json:"social"`

	Visibility   cardlink.SectionVisibility `json:"visibility"`
	SectionOrder []cardlink.SectionKey      `json:"section_order"`
}

func comparableProjection(d domain.DraftState) persistedProjection {
	works := make([]string, 0, len(d.WorkImages))
	for _, w := range d.WorkImages {
		if w.URL != "" {
			works = append(works, w.URL)
		}
	}
	return persistedProjection{
		Theme:           d.Theme,
		Font:            d.Font,
		Alignment:       d.Alignment,
		ButtonColor:     d.ButtonColor,
		AboutLayout:     d.AboutLayout,
		CoverPhoto:      d.CoverPhoto.URL,
		MainHeading:     d.MainHeading,
		SubHeading:      d.SubHeading,
		Avatar:          d.Avatar.URL,
		FullName:        d.FullName,
		JobTitle:        d.JobTitle,
		Bio:             d.Bio,
		WorkImages:      works,
		WorkDisplay:     d.WorkDisplay,
		Services:        append([]cardlink.ServiceEntry(nil), d.Services...),
		ServicesDisplay: d.ServicesDisplay,
		Reviews:         append([]cardlink.ReviewEntry(nil), d.Reviews...),
		ReviewsDisplay:  d.ReviewsDisplay,
		Email:           d.Email,
		Phone:           d.Phone,
		Social:          d.Social,
		Visibility:      d.Visibility,
		SectionOrder:    append([]cardlink.SectionKey(nil), d.SectionOrder...),
	}
}

// previewURL maps a pending handle to the local endpoint that serves its
// bytes, so the editor preview can show a picked file before it is uploaded.
func previewURL(h domain.HandleID) string {
	return "/api/v1/card/images/" + string(h)
}

// displayURL resolves an image slot for rendering: a pending local pick wins
// over the durable URL it is replacing.
func displayURL(s domain.ImageSlot) string {
	if s.Handle != "" {
		return previewURL(s.Handle)
	}
	return s.URL
}

// displayWorkImages resolves the gallery for rendering, dropping malformed
// entries that carry neither a URL nor a handle.
func displayWorkImages(work []domain.WorkImage) []string {
	out := make([]string, 0, len(work))
	for _, w := range work {
		switch {
		case w.Handle != "":
			out = append(out, previewURL(w.Handle))
		case w.URL != "":
			out = append(out, w.URL)
		}
	}
	return out
}
