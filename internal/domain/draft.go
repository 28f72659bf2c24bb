package domain

import (
	cardlink "github.com/cardlink-app/cardlink-web"
)

// HandleID identifies a temporary, process-local image handle created when the
// user picks a file in the editor. Empty means "no pending file".
type HandleID string

// ImageSlot is a single-image field (cover photo, avatar). Either a durable
// remote URL, a pending local handle, or both during replacement — in which
// case the pending handle wins for display and for the save payload.
type ImageSlot struct {
	URL    string   `json:"url,omitempty"`
	Handle HandleID `json:"handle,omitempty"`
}

func (s ImageSlot) Pending() bool { return s.Handle != "" }
func (s ImageSlot) Empty() bool   { return s.URL == "" && s.Handle == "" }

// WorkImage is one gallery entry: a durable URL, a freshly picked local file,
// or (malformed) neither.
type WorkImage struct {
	URL    string   `json:"url,omitempty"`
	Handle HandleID `json:"handle,omitempty"`
}

// RemovalFlags disambiguate "user deleted this image" from "user didn't touch
// it": under multipart encoding an absent part alone cannot tell the two
// apart, so the flags travel with every save.
type RemovalFlags struct {
	CoverPhotoRemoved bool `json:"cover_photo_removed"`
	AvatarRemoved     bool `json:"avatar_removed"`
}

func (f RemovalFlags) Any() bool { return f.CoverPhotoRemoved || f.AvatarRemoved }

// DraftState mirrors the editable fields of a BusinessCardDocument, with image
// fields widened to hold pending local handles alongside durable URLs. It is
// never sent verbatim; the form serializer transforms it at publish time.
type DraftState struct {
	Theme       cardlink.Theme       `json:"page_theme"`
	Font        cardlink.Font        `json:"font"`
	Alignment   cardlink.Alignment   `json:"text_alignment"`
	ButtonColor string               `json:"button_color,omitempty"`
	AboutLayout cardlink.AboutLayout `json:"about_layout"`

	CoverPhoto  ImageSlot `json:"cover_photo"`
	MainHeading string    `json:"main_heading,omitempty"`
	SubHeading  string    `json:"sub_heading,omitempty"`

	Avatar   ImageSlot `json:"avatar"`
	FullName string    `json:"full_name,omitempty"`
	JobTitle string    `json:"job_title,omitempty"`
	Bio      string    `json:"bio,omitempty"`

	WorkImages  []WorkImage          `json:"works"`
	WorkDisplay cardlink.DisplayMode `json:"work_display_mode"`

	Services        []cardlink.ServiceEntry `json:"services"`
	ServicesDisplay cardlink.DisplayMode    `json:"services_display_mode"`

	Reviews        []cardlink.ReviewEntry `json:"reviews"`
	ReviewsDisplay cardlink.DisplayMode   `json:"reviews_display_mode"`

	Email  string               `json:"contact_email,omitempty"`
	Phone  string               `json:"contact_phone,omitempty"`
	Social cardlink.SocialLinks `json:"social"`

	Visibility   cardlink.SectionVisibility `json:"visibility"`
	SectionOrder []cardlink.SectionKey      `json:"section_order"`
}

// DefaultDraft is the state of a brand-new, never-saved card.
func DefaultDraft() DraftState {
	return DraftState{
		Theme:           cardlink.ThemeLight,
		Font:            cardlink.FontInter,
		Alignment:       cardlink.AlignCenter,
		AboutLayout:     cardlink.AboutSideBySide,
		WorkDisplay:     cardlink.DisplayGrid,
		ServicesDisplay: cardlink.DisplayList,
		ReviewsDisplay:  cardlink.DisplayList,
		Visibility:      cardlink.AllVisible(),
		SectionOrder:    cardlink.DefaultSectionOrder(),
	}
}

// DraftFromDocument widens a fetched canonical document into editable state.
func DraftFromDocument(doc *cardlink.BusinessCardDocument) DraftState {
	if doc == nil {
		return DefaultDraft()
	}
	work := make([]WorkImage, 0, len(doc.WorkImages))
	for _, u := range doc.WorkImages {
		work = append(work, WorkImage{URL: u})
	}
	return DraftState{
		Theme:           doc.Theme,
		Font:            doc.Font,
		Alignment:       doc.Alignment,
		ButtonColor:     doc.ButtonColor,
		AboutLayout:     doc.AboutLayout,
		CoverPhoto:      ImageSlot{URL: doc.CoverPhoto},
		MainHeading:     doc.MainHeading,
		SubHeading:      doc.SubHeading,
		Avatar:          ImageSlot{URL: doc.Avatar},
		FullName:        doc.FullName,
		JobTitle:        doc.JobTitle,
		Bio:             doc.Bio,
		WorkImages:      work,
		WorkDisplay:     doc.WorkDisplay,
		Services:        append([]cardlink.ServiceEntry(nil), doc.Services...),
		ServicesDisplay: doc.ServicesDisplay,
		Reviews:         append([]cardlink.ReviewEntry(nil), doc.Reviews...),
		ReviewsDisplay:  doc.ReviewsDisplay,
		Email:           doc.Email,
		Phone:           doc.Phone,
		Social:          doc.Social,
		Visibility:      doc.Visibility,
		SectionOrder:    cardlink.NormalizeSectionOrder(doc.SectionOrder),
	}
}

// Clone deep-copies the slices so a snapshot cannot be mutated through the
// live state.
func (d DraftState) Clone() DraftState {
	out := d
	out.WorkImages = append([]WorkImage(nil), d.WorkImages...)
	out.Services = append([]cardlink.ServiceEntry(nil), d.Services...)
	out.Reviews = append([]cardlink.ReviewEntry(nil), d.Reviews...)
	out.SectionOrder = append([]cardlink.SectionKey(nil), d.SectionOrder...)
	return out
}

// PendingHandles lists every temporary handle currently referenced.
func (d DraftState) PendingHandles() []HandleID {
	var out []HandleID
	if d.CoverPhoto.Handle != "" {
		out = append(out, d.CoverPhoto.Handle)
	}
	if d.Avatar.Handle != "" {
		out = append(out, d.Avatar.Handle)
	}
	for _, w := range d.WorkImages {
		if w.Handle != "" {
			out = append(out, w.Handle)
		}
	}
	return out
}

// HasPendingFiles reports whether any slot holds a freshly picked file.
func (d DraftState) HasPendingFiles() bool {
	return len(d.PendingHandles()) > 0
}

// DraftPatch is a shallow merge of editor changes: nil means "untouched".
// Image slots are not patched here; they move through the dedicated
// attach/remove operations so handle lifecycle stays in one place.
type DraftPatch struct {
	Theme       *cardlink.Theme       `json:"page_theme,omitempty"`
	Font        *cardlink.Font        `json:"font,omitempty"`
	Alignment   *cardlink.Alignment   `json:"text_alignment,omitempty"`
	ButtonColor *string               `json:"button_color,omitempty"`
	AboutLayout *cardlink.AboutLayout `json:"about_layout,omitempty"`

	MainHeading *string `json:"main_heading,omitempty"`
	SubHeading  *string `json:"sub_heading,omitempty"`

	FullName *string `json:"full_name,omitempty"`
	JobTitle *string `json:"job_title,omitempty"`
	Bio      *string `json:"bio,omitempty"`

	WorkDisplay *cardlink.DisplayMode `json:"work_display_mode,omitempty"`

	Services        *[]cardlink.ServiceEntry `json:"services,omitempty"`
	ServicesDisplay *cardlink.DisplayMode    `json:"services_display_mode,omitempty"`

	Reviews        *[]cardlink.ReviewEntry `json:"reviews,omitempty"`
	ReviewsDisplay *cardlink.DisplayMode   `json:"reviews_display_mode,omitempty"`

	Email  *string               `json:"contact_email,omitempty"`
	Phone  *string               `json:"contact_phone,omitempty"`
	Social *cardlink.SocialLinks `json:"social,omitempty"`

	Visibility   *cardlink.SectionVisibility `json:"visibility,omitempty"`
	SectionOrder *[]cardlink.SectionKey      `json:"section_order,omitempty"`
}
