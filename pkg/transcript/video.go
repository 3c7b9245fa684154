package transcript

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/barekit/lectern/pkg/apperr"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,20}$`)

// VideoID extracts the video id from a YouTube link. It understands
// watch?v=, youtu.be/, /shorts/, /embed/ and /live/ forms and otherwise
// falls back to the text after the last "=".
func VideoID(link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", apperr.Invalid("youtube_link is required")
	}

	u, err := url.Parse(link)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", apperr.Invalid(fmt.Sprintf("invalid youtube_link %q", link))
	}

	var id string
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch {
	case u.Query().Get("v") != "":
		id = u.Query().Get("v")
	case host == "youtu.be":
		id = segments[0]
	case len(segments) >= 2 && (segments[0] == "shorts" || segments[0] == "embed" || segments[0] == "live"):
		id = segments[1]
	default:
		parts := strings.Split(link, "=")
		id = parts[len(parts)-1]
	}

	if !videoIDPattern.MatchString(id) {
		return "", apperr.Invalid(fmt.Sprintf("could not find a video id in %q", link))
	}
	return id, nil
}

// ThumbnailURL returns the default thumbnail of a video.
func ThumbnailURL(videoID string) string {
	return "http://img.youtube.com/vi/" + videoID + "/0.jpg"
}
