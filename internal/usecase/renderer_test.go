package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	cardlink "github.com/cardlink-app/cardlink-web"
	"github.com/cardlink-app/cardlink-web/internal/domain"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func subscribedDoc() *cardlink.BusinessCardDocument {
	return &cardlink.BusinessCardDocument{
		OwnerID:      "u-1",
		IsSubscribed: true,
		Visibility:   cardlink.AllVisible(),
	}
}

func TestRenderMissingDocument(t *testing.T) {
	state := BuildRenderState(nil, testNow)
	if state.Phase != PhaseNotFound {
		t.Fatalf("expected not_found, got %s", state.Phase)
	}
}

func TestRenderGatedNeverLeaksContent(t *testing.T) {
	doc := &cardlink.BusinessCardDocument{
		MainHeading:  "Hello",
		TrialExpires: testNow.Add(-24 * time.Hour),
		Visibility:   cardlink.AllVisible(),
	}

	state := BuildRenderState(doc, testNow)
	if state.Phase != PhaseGated {
		t.Fatalf("expected gated, got %s", state.Phase)
	}
	if state.Reason != GateExpired {
		t.Fatalf("expired trial must report expired, got %s", state.Reason)
	}
	if len(state.Sections) != 0 {
		t.Fatalf("gated page must not carry content")
	}
}

func TestRenderGatedNeverPublished(t *testing.T) {
	doc := &cardlink.BusinessCardDocument{
		MainHeading: "Hello",
		Visibility:  cardlink.AllVisible(),
	}

	state := BuildRenderState(doc, testNow)
	if state.Phase != PhaseGated || state.Reason != GateNotPublished {
		t.Fatalf("expected not_published gate, got %s/%s", state.Phase, state.Reason)
	}
}

func TestRenderActiveTrialIsLive(t *testing.T) {
	doc := subscribedDoc()
	doc.IsSubscribed = false
	doc.TrialExpires = testNow.Add(24 * time.Hour)
	doc.MainHeading = "Hello"

	state := BuildRenderState(doc, testNow)
	if state.Phase != PhaseLive {
		t.Fatalf("unexpired trial must be live, got %s", state.Phase)
	}
}

func TestRenderEmptyProfile(t *testing.T) {
	doc := subscribedDoc()
	doc.WorkImages = []string{}

	state := BuildRenderState(doc, testNow)
	if state.Phase != PhaseEmpty {
		t.Fatalf("expected empty, got %s", state.Phase)
	}
}

func TestRenderSectionsFollowDocumentOrder(t *testing.T) {
	doc := subscribedDoc()
	doc.Email = "a@b.com"
	doc.SectionOrder = []cardlink.SectionKey{cardlink.SectionContact, cardlink.SectionMain}

	state := BuildRenderState(doc, testNow)
	if state.Phase != PhaseLive {
		t.Fatalf("expected live, got %s", state.Phase)
	}
	// contact email qualifies both the contact section and main's contact
	// button; main has no other content but the button keeps it live
	if len(state.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(state.Sections))
	}
	if state.Sections[0].Key != cardlink.SectionContact {
		t.Fatalf("document order not respected: %+v", state.Sections)
	}
	if state.Sections[1].Main == nil || !state.Sections[1].Main.ShowContact {
		t.Fatalf("main should render its contact button")
	}
}

func TestRenderSkipsHiddenSections(t *testing.T) {
	doc := subscribedDoc()
	doc.Email = "a@b.com"
	doc.Visibility.Contact = false
	doc.Visibility.Main = false
	doc.FullName = "Ada"

	state := BuildRenderState(doc, testNow)
	if state.Phase != PhaseLive {
		t.Fatalf("expected live, got %s", state.Phase)
	}
	for _, s := range state.Sections {
		if s.Key == cardlink.SectionContact || s.Key == cardlink.SectionMain {
			t.Fatalf("hidden section leaked: %s", s.Key)
		}
	}
}

func TestRenderPlaceholderValuesDoNotQualify(t *testing.T) {
	doc := subscribedDoc()
	doc.Avatar = "https://cdn/x/demo-avatar.png"

	state := BuildRenderState(doc, testNow)
	if state.Phase != PhaseEmpty {
		t.Fatalf("placeholder avatar must not qualify about, got %s", state.Phase)
	}
}

func TestRenderWorkFiltersPlaceholders(t *testing.T) {
	doc := subscribedDoc()
	doc.WorkImages = []string{"/assets/stock-1.jpg", "https://cdn/x/real.jpg"}

	state := BuildRenderState(doc, testNow)
	if state.Phase != PhaseLive {
		t.Fatalf("expected live, got %s", state.Phase)
	}
	if len(state.Sections) != 1 || state.Sections[0].Work == nil {
		t.Fatalf("expected only the work section, got %+v", state.Sections)
	}
	images := state.Sections[0].Work.Images
	if len(images) != 1 || images[0] != "https://cdn/x/real.jpg" {
		t.Fatalf("placeholders must be filtered: %v", images)
	}
}

func TestRenderHeroSwapMatchesPreview(t *testing.T) {
	doc := subscribedDoc()
	doc.CoverPhoto = "https://cdn/x/cover.jpg"
	doc.WorkImages = []string{"https://cdn/x/a.jpg", "https://cdn/x/b.jpg"}

	public := BuildRenderState(doc, testNow)
	preview := BuildPreview(domain.DraftFromDocument(doc), true)

	for _, state := range []RenderState{public, preview} {
		var main *MainSection
		var work *WorkSection
		for _, s := range state.Sections {
			if s.Main != nil {
				main = s.Main
			}
			if s.Work != nil {
				work = s.Work
			}
		}
		if main == nil || work == nil {
			t.Fatalf("expected main and work sections: %+v", state.Sections)
		}
		if main.CoverPhoto != "https://cdn/x/a.jpg" {
			t.Fatalf("first work image must become the hero, got %s", main.CoverPhoto)
		}
		if len(work.Images) != 2 || work.Images[0] != "https://cdn/x/cover.jpg" || work.Images[1] != "https://cdn/x/b.jpg" {
			t.Fatalf("cover must lead the gallery, got %v", work.Images)
		}
	}
}

func TestRenderHeroStaysWithoutWorkImages(t *testing.T) {
	doc := subscribedDoc()
	doc.CoverPhoto = "https://cdn/x/cover.jpg"

	state := BuildRenderState(doc, testNow)
	if state.Sections[0].Main == nil || state.Sections[0].Main.CoverPhoto != "https://cdn/x/cover.jpg" {
		t.Fatalf("cover must stay the hero with an empty gallery: %+v", state.Sections)
	}
}

func TestRenderServicesDropEmptyEntries(t *testing.T) {
	doc := subscribedDoc()
	doc.Services = []cardlink.ServiceEntry{{}, {Name: "Cut"}}

	state := BuildRenderState(doc, testNow)
	if state.Phase != PhaseLive {
		t.Fatalf("expected live, got %s", state.Phase)
	}
	entries := state.Sections[0].Services.Entries
	if len(entries) != 1 || entries[0].Name != "Cut" {
		t.Fatalf("empty entries must be dropped: %v", entries)
	}
}

func TestRenderReviewQualifiesByRatingAlone(t *testing.T) {
	doc := subscribedDoc()
	doc.Reviews = []cardlink.ReviewEntry{{Rating: 4}}

	state := BuildRenderState(doc, testNow)
	if state.Phase != PhaseLive || state.Sections[0].Reviews == nil {
		t.Fatalf("rating-only review must qualify, got %+v", state)
	}
}

func TestRenderSocialsAloneDoNotQualifyContact(t *testing.T) {
	doc := subscribedDoc()
	doc.Social = cardlink.SocialLinks{Instagram: "https://instagram.com/ada"}

	state := BuildRenderState(doc, testNow)
	if state.Phase != PhaseEmpty {
		t.Fatalf("social links alone must not qualify contact, got %s", state.Phase)
	}
}

func TestRenderPublicTransientFailure(t *testing.T) {
	repo := &mockCardRepo{fetchErr: domain.TransientError{Err: errors.New("boom")}}
	uc := NewProfileUsecase(repo)

	state, err := uc.RenderPublic(context.Background(), "ada")
	if err == nil {
		t.Fatalf("expected error")
	}
	if state.Phase != PhaseLoading {
		t.Fatalf("transient failure must stay in loading, got %s", state.Phase)
	}
}

func TestRenderPublicAbsence(t *testing.T) {
	uc := NewProfileUsecase(&mockCardRepo{})

	state, err := uc.RenderPublic(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("absence must not be an error: %v", err)
	}
	if state.Phase != PhaseNotFound {
		t.Fatalf("expected not_found, got %s", state.Phase)
	}
}
