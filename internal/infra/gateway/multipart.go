package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/pkg/errors"

	cardlink "github.com/cardlink-app/cardlink-web"
	"github.com/cardlink-app/cardlink-web/internal/domain"
	"github.com/cardlink-app/cardlink-web/internal/usecase"
)

// BuildSaveForm encodes a draft into the card API's multipart save payload.
// Scalars map 1:1 to named parts, arrays are JSON-encoded into one part each,
// and image slots send a binary part only when a freshly picked file is
// attached. The removal flags are always sent explicitly so the server can
// tell "cleared" from "unchanged". The only error condition of its own is a
// missing owner id; optional fields are simply empty parts.
func BuildSaveForm(req usecase.SaveRequest) (io.Reader, string, error) {
	if req.OwnerID == "" {
		return nil, "", domain.ErrMissingOwner
	}

	d := req.Draft
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct {
		name  string
		value string
	}{
		{"user_id", req.OwnerID},
		{"page_theme", string(d.Theme)},
		{"font", string(d.Font)},
		{"text_alignment", string(d.Alignment)},
		{"button_color", d.ButtonColor},
		{"about_layout", string(d.AboutLayout)},
		{"main_heading", d.MainHeading},
		{"sub_heading", d.SubHeading},
		{"full_name", d.FullName},
		{"job_title", d.JobTitle},
		{"bio", d.Bio},
		{"contact_email", d.Email},
		{"contact_phone", d.Phone},
		{"facebook_url", d.Social.Facebook},
		{"instagram_url", d.Social.Instagram},
		{"linkedin_url", d.Social.LinkedIn},
		{"x_url", d.Social.X},
		{"tiktok_url", d.Social.TikTok},
		{"work_display_mode", string(d.WorkDisplay)},
		{"services_display_mode", string(d.ServicesDisplay)},
		{"reviews_display_mode", string(d.ReviewsDisplay)},
		{"show_main_section", strconv.FormatBool(d.Visibility.Main)},
		{"show_about_section", strconv.FormatBool(d.Visibility.About)},
		{"show_work_section", strconv.FormatBool(d.Visibility.Work)},
		{"show_services_section", strconv.FormatBool(d.Visibility.Services)},
		{"show_reviews_section", strconv.FormatBool(d.Visibility.Reviews)},
		{"show_contact_section", strconv.FormatBool(d.Visibility.Contact)},
		{"cover_photo_removed", strconv.FormatBool(req.Flags.CoverPhotoRemoved)},
		{"avatar_removed", strconv.FormatBool(req.Flags.AvatarRemoved)},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", errors.Wrap(err, "failed to write form field")
		}
	}

	if err := writeJSONField(w, "section_order", cardlink.NormalizeSectionOrder(d.SectionOrder)); err != nil {
		return nil, "", err
	}
	if err := writeJSONField(w, "services", filterServices(d.Services)); err != nil {
		return nil, "", err
	}
	if err := writeJSONField(w, "reviews", filterReviews(d.Reviews)); err != nil {
		return nil, "", err
	}

	if err := writeSlot(w, "cover_photo", d.CoverPhoto, req.Images); err != nil {
		return nil, "", err
	}
	if err := writeSlot(w, "avatar", d.Avatar, req.Images); err != nil {
		return nil, "", err
	}

	// the gallery splits into two buckets: freshly picked files go out as
	// binary parts, untouched durable URLs as string parts. Entries with
	// neither are dropped. Per-bucket order is preserved; cross-bucket order
	// is an open point of the API contract, so each part also carries its
	// original index.
	for i, img := range d.WorkImages {
		switch {
		case img.Handle != "":
			if err := writeHandle(w, "work_images", img.Handle, req.Images); err != nil {
				return nil, "", err
			}
			if err := w.WriteField("work_images_order", strconv.Itoa(i)); err != nil {
				return nil, "", errors.Wrap(err, "failed to write form field")
			}
		case img.URL != "":
			if err := w.WriteField("existing_work_images", img.URL); err != nil {
				return nil, "", errors.Wrap(err, "failed to write form field")
			}
			if err := w.WriteField("existing_work_images_order", strconv.Itoa(i)); err != nil {
				return nil, "", errors.Wrap(err, "failed to write form field")
			}
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "failed to finalize form")
	}
	return &buf, w.FormDataContentType(), nil
}

func writeJSONField(w *multipart.Writer, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", name)
	}
	if err := w.WriteField(name, string(raw)); err != nil {
		return errors.Wrap(err, "failed to write form field")
	}
	return nil
}

func writeSlot(w *multipart.Writer, name string, slot domain.ImageSlot, images usecase.ImageOpener) error {
	if slot.Handle == "" {
		return nil
	}
	return writeHandle(w, name, slot.Handle, images)
}

func writeHandle(w *multipart.Writer, name string, h domain.HandleID, images usecase.ImageOpener) error {
	rc, filename, err := images.Open(h)
	if err != nil {
		return errors.Wrapf(err, "failed to open pending image for %s", name)
	}
	defer rc.Close()

	part, err := w.CreateFormFile(name, filename)
	if err != nil {
		return errors.Wrap(err, "failed to create file part")
	}
	if _, err := io.Copy(part, rc); err != nil {
		return errors.Wrap(err, "failed to copy image bytes")
	}
	return nil
}

func filterServices(entries []cardlink.ServiceEntry) []cardlink.ServiceEntry {
	out := make([]cardlink.ServiceEntry, 0, len(entries))
	for _, e := range entries {
		if e.Name != "" || e.Price != "" {
			out = append(out, e)
		}
	}
	return out
}

func filterReviews(entries []cardlink.ReviewEntry) []cardlink.ReviewEntry {
	out := make([]cardlink.ReviewEntry, 0, len(entries))
	for _, e := range entries {
		if e.Name != "" || e.Text != "" {
			out = append(out, e)
		}
	}
	return out
}
