// Package youtubeurl проверяет ссылки на видео YouTube и извлекает из них идентификатор.
package youtubeurl

import (
	"net/url"
	"strings"
)

var allowedHosts = map[string]bool{
	"youtube.com":     true,
	"www.youtube.com": true,
	"m.youtube.com":   true,
	"youtu.be":        true,
}

// IsValid сообщает, является ли ссылка ссылкой на видео YouTube с извлекаемым id.
func IsValid(raw string) bool {
	return ExtractVideoID(raw) != ""
}

// IsYouTubeURL проверяет только схему и хост, без id видео.
func IsYouTubeURL(raw string) bool {
	_, ok := parse(raw)
	return ok
}

func parse(raw string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, false
	}
	return u, allowedHosts[strings.ToLower(u.Hostname())]
}

// ExtractVideoID возвращает id видео или пустую строку.
// Поддерживаются youtube.com/watch?v=ID и youtu.be/ID с любыми дополнительными параметрами.
func ExtractVideoID(raw string) string {
	u, ok := parse(raw)
	if !ok {
		return ""
	}
	host := strings.ToLower(u.Hostname())

	if host == "youtu.be" {
		id, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		return id
	}
	if u.Path != "/watch" && u.Path != "/watch/" {
		return ""
	}
	return u.Query().Get("v")
}

// Canonical возвращает ссылку вида https://www.youtube.com/watch?v=ID.
func Canonical(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}
