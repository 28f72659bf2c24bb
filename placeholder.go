package cardlink

import (
	"strings"
)

// placeholderMarkers flag sample/demo/stock assets that ship with the editor.
// A value containing any of these is treated as absent when deciding whether a
// section has publishable content, even though the string itself is non-empty.
var placeholderMarkers = []string{
	"placeholder",
	"demo",
	"sample",
	"stock",
}

// IsPlaceholder reports whether a text or URL value looks like canned content.
func IsPlaceholder(v string) bool {
	lower := strings.ToLower(v)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Present reports whether a string qualifies as real user content.
func Present(v string) bool {
	return strings.TrimSpace(v) != "" && !IsPlaceholder(v)
}

// ResolveField implements the first-time-setup placeholder policy. Until the
// user has saved a document at least once, empty fields fall back to canned
// placeholders so the preview never looks broken. Once any document exists the
// switch flips globally and empty fields render as empty.
func ResolveField(userValue, placeholder string, hasEverSaved bool) string {
	if hasEverSaved {
		return userValue
	}
	if strings.TrimSpace(userValue) == "" {
		return placeholder
	}
	return userValue
}

// Placeholders are the canned first-time-setup values. The image assets carry
// a marker substring on purpose, so they can never qualify a section as live.
type Placeholders struct {
	CoverPhoto  string
	MainHeading string
	SubHeading  string
	Avatar      string
	FullName    string
	JobTitle    string
	Bio         string
	WorkImages  []string
}

func DefaultPlaceholders() Placeholders {
	return Placeholders{
		CoverPhoto:  "/assets/placeholder-cover.jpg",
		MainHeading: "Welcome to my card",
		SubHeading:  "Tell visitors what you do",
		Avatar:      "/assets/placeholder-avatar.png",
		FullName:    "Your Name",
		JobTitle:    "Your Profession",
		Bio:         "A few lines about you and your work.",
		WorkImages: []string{
			"/assets/placeholder-work-1.jpg",
			"/assets/placeholder-work-2.jpg",
		},
	}
}

// DeriveHero computes the cosmetic cover/work swap: once a document exists and
// the user has both a cover photo and at least one work image, the first work
// image becomes the hero and the original cover joins the front of the
// gallery. Purely derived on every render, nothing is stored.
func DeriveHero(cover string, workImages []string, hasDocument bool) (string, []string) {
	if !hasDocument || cover == "" || len(workImages) == 0 {
		return cover, workImages
	}
	gallery := make([]string, 0, len(workImages))
	gallery = append(gallery, cover)
	gallery = append(gallery, workImages[1:]...)
	return workImages[0], gallery
}
