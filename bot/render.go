package bot

import "strings"

// DefaultAnnounceText is used when a guild has no custom template.
const DefaultAnnounceText = "🎂 Happy Birthday, {mention}! Have an amazing day! 🥳"

// RenderTemplate substitutes the recognised placeholders into an
// announcement template. Only {mention}, {user} and {date} are
// replaced; anything else in the template passes through untouched.
func RenderTemplate(template, mention, username, date string) string {
	return strings.NewReplacer(
		"{mention}", mention,
		"{user}", username,
		"{date}", date,
	).Replace(template)
}
