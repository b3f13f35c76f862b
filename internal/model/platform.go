package model

// Platform identifies a social network recognized by the contact extractor.
type Platform string

const (
	// PlatformYouTube is youtube.com and youtu.be.
	PlatformYouTube Platform = "youtube"
	// PlatformTwitter is twitter.com and x.com.
	PlatformTwitter Platform = "twitter"
	// PlatformFacebook is facebook.com, fb.com and fb.me.
	PlatformFacebook Platform = "facebook"
	// PlatformLinkedIn is linkedin.com.
	PlatformLinkedIn Platform = "linkedin"
	// PlatformTikTok is tiktok.com.
	PlatformTikTok Platform = "tiktok"
	// PlatformSnapchat is snapchat.com.
	PlatformSnapchat Platform = "snapchat"
	// PlatformPinterest is pinterest.com.
	PlatformPinterest Platform = "pinterest"
	// PlatformTwitch is twitch.tv.
	PlatformTwitch Platform = "twitch"
)

// String returns the string representation of the Platform.
func (p Platform) String() string {
	return string(p)
}

// AllPlatforms returns every known platform in display order.
func AllPlatforms() []Platform {
	return []Platform{
		PlatformYouTube,
		PlatformTwitter,
		PlatformFacebook,
		PlatformLinkedIn,
		PlatformTikTok,
		PlatformSnapchat,
		PlatformPinterest,
		PlatformTwitch,
	}
}

// IsValid returns true if p is a known platform.
func (p Platform) IsValid() bool {
	for _, known := range AllPlatforms() {
		if p == known {
			return true
		}
	}
	return false
}
