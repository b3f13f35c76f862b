package model

// ContactRecord is the structured contact information extracted from a
// profile. Empty strings mean "not found".
type ContactRecord struct {
	// Email is the first usable email address.
	Email string `json:"email,omitempty"`
	// Emails lists every usable email address in order of appearance.
	Emails []string `json:"emails,omitempty"`
	// Phone is the first phone number with at least eight digits.
	Phone string `json:"phone,omitempty"`
	// Phones lists every phone number in order of appearance.
	Phones []string `json:"phones,omitempty"`
	// MessagingHandle is the Telegram username without "@".
	MessagingHandle string `json:"messaging_handle,omitempty"`
	// MessagingLink is the canonical https://t.me/<handle> link.
	MessagingLink string `json:"messaging_link,omitempty"`
	// ChatAppLink is the canonical https://wa.me/<digits> link.
	ChatAppLink string `json:"chat_app_link,omitempty"`
	// Website is the primary non-social, non-messaging web address.
	Website string `json:"website,omitempty"`
	// SocialLinks maps a platform to the first link found for it.
	SocialLinks map[Platform]string `json:"social_links,omitempty"`
	// AllLinks lists every URL found, deduplicated in order of appearance.
	AllLinks []string `json:"all_links,omitempty"`
}

// IsEmpty reports whether no contact channel was found.
func (c ContactRecord) IsEmpty() bool {
	return c.Email == "" && c.Phone == "" && c.MessagingHandle == "" &&
		c.ChatAppLink == "" && c.Website == "" && len(c.SocialLinks) == 0
}
