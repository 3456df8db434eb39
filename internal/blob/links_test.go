package blob

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenOf(t *testing.T, link string) (string, string) {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return strings.TrimPrefix(u.Path, MediaPrefix), u.Query().Get("token")
}

func TestLinks_RoundTrip(t *testing.T) {
	links := NewLinks("http://cam.local/", []byte("test-key"))

	link := links.URL("patients/p1/Rodilla/2024-03-01_10-00-00_ab12cd34.jpg")
	assert.True(t, strings.HasPrefix(link, "http://cam.local/media/patients/p1/Rodilla/2024-03-01_10-00-00_ab12cd34.jpg?token="))
	assert.Equal(t, link, links.URL("/patients/p1/Rodilla/2024-03-01_10-00-00_ab12cd34.jpg"), "stable per path")

	path, token := tokenOf(t, link)
	assert.True(t, links.Verify(path, token))
}

func TestLinks_VerifyRejects(t *testing.T) {
	links := NewLinks("http://cam.local", []byte("test-key"))
	_, token := tokenOf(t, links.URL("patients/p1/a.jpg"))

	assert.False(t, links.Verify("patients/p1/a.jpg", ""), "no token")
	assert.False(t, links.Verify("patients/p1/b.jpg", token), "token of another path")
	assert.False(t, links.Verify("patients/p1/a.jpg", token+"x"), "tampered token")

	other := NewLinks("http://cam.local", []byte("other-key"))
	assert.False(t, other.Verify("patients/p1/a.jpg", token), "token from another key")

	keyless := NewLinks("http://cam.local", nil)
	assert.False(t, keyless.Verify("patients/p1/a.jpg", token))
}

func TestLinks_EscapesPathSegments(t *testing.T) {
	links := NewLinks("http://cam.local", []byte("test-key"))

	link := links.URL("patients/p1/Miembro inferior/a.jpg")
	assert.Contains(t, link, "/media/patients/p1/Miembro%20inferior/a.jpg?token=")

	path, token := tokenOf(t, link)
	assert.Equal(t, "patients/p1/Miembro inferior/a.jpg", path)
	assert.True(t, links.Verify(path, token))
}
