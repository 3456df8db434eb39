package blob

import (
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// MediaPrefix is the route segment that serves blobs back over HTTP.
const MediaPrefix = "/media/"

const (
	tokenParam    = "token"
	mediaAudience = "media"
)

// Links mints and checks public media URLs. Each URL carries a token signed
// over its path, so knowing a path is not enough to read the blob.
type Links struct {
	baseURL string
	key     []byte
}

func NewLinks(baseURL string, key []byte) *Links {
	return &Links{baseURL: strings.TrimRight(baseURL, "/"), key: key}
}

// URL returns the public link for path. It is stable for a given path and key.
func (l *Links) URL(path string) string {
	path = strings.TrimLeft(path, "/")
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return l.baseURL + MediaPrefix + strings.Join(segments, "/") + "?" + tokenParam + "=" + url.QueryEscape(l.token(path))
}

func (l *Links) token(path string) string {
	claims := jwt.RegisteredClaims{
		Subject:  path,
		Audience: jwt.ClaimStrings{mediaAudience},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.key)
	if err != nil {
		// An empty token never verifies.
		return ""
	}
	return signed
}

// Verify reports whether token was minted for path with this key.
func (l *Links) Verify(path, token string) bool {
	if token == "" || len(l.key) == 0 {
		return false
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return l.key, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithAudience(mediaAudience))
	return err == nil && claims.Subject == strings.TrimLeft(path, "/")
}
