package utils

import (
	"fmt"
	"regexp"
)

var videoIDPattern = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([^&\n?#]+)`)

// YouTubeWatchURL returns the public watch URL for a video ID.
func YouTubeWatchURL(videoID string) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
}

// YouTubeEmbedURL returns the embeddable player URL for a video ID.
func YouTubeEmbedURL(videoID string) string {
	return fmt.Sprintf("https://www.youtube.com/embed/%s", videoID)
}

// YouTubeThumbnailURL returns the medium quality thumbnail for a video ID.
func YouTubeThumbnailURL(videoID string) string {
	return fmt.Sprintf("https://img.youtube.com/vi/%s/mqdefault.jpg", videoID)
}

// ExtractVideoID pulls the video ID out of a watch, short, or embed URL.
// Returns "" when the URL is not recognized.
func ExtractVideoID(url string) string {
	m := videoIDPattern.FindStringSubmatch(url)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
