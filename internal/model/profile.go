package model

import "time"

// Profile is the normalized public profile of a single handle as returned
// by a profile data source.
type Profile struct {
	// Handle is the canonical handle.
	Handle string `json:"handle"`
	// DisplayName is the human-readable name shown on the profile.
	DisplayName string `json:"display_name,omitempty"`
	// Followers is the follower count.
	Followers int64 `json:"followers"`
	// Following is the number of accounts this handle follows.
	Following int64 `json:"following"`
	// Posts is the total number of published media items.
	Posts int64 `json:"posts"`
	// Bio is the free-text profile biography.
	Bio string `json:"bio,omitempty"`
	// ExternalLink is the single link shown on the profile, if any.
	ExternalLink string `json:"external_link,omitempty"`
	// Category is the business category label, if any.
	Category string `json:"category,omitempty"`
	// PublicEmail is the contact email published by business profiles.
	PublicEmail string `json:"public_email,omitempty"`
	// PublicPhone is the contact phone published by business profiles.
	PublicPhone string `json:"public_phone,omitempty"`
	// Verified reports whether the platform verified the account.
	Verified bool `json:"verified"`
	// Business reports whether the account is a business/creator account.
	Business bool `json:"business"`
	// Private reports whether the account hides its content.
	Private bool `json:"private"`
}

// Metrics returns the numeric profile counters.
func (p Profile) Metrics() ProfileMetrics {
	return ProfileMetrics{
		Followers: p.Followers,
		Following: p.Following,
		Posts:     p.Posts,
	}
}

// ProfileMetrics holds the raw profile counters recorded on discovered rows.
type ProfileMetrics struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
	Posts     int64 `json:"posts"`
}

// ActivityItem is one recent short-form video or post with its counters.
type ActivityItem struct {
	// ID is the source identifier of the item.
	ID string `json:"id,omitempty"`
	// Views is the play/view count.
	Views int64 `json:"views"`
	// Likes is the like count.
	Likes int64 `json:"likes"`
	// Comments is the comment count.
	Comments int64 `json:"comments"`
	// PostedAt is when the item was published. Zero when unknown.
	PostedAt time.Time `json:"posted_at,omitzero"`
}

// CompleteData bundles a profile with its recent activity and follow list.
// Activity and Following are empty when their fetches failed.
type CompleteData struct {
	Profile   Profile        `json:"profile"`
	Activity  []ActivityItem `json:"activity"`
	Following []string       `json:"following"`
}
