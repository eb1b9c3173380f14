package creative

import (
	"embed"
	"fmt"

	"github.com/patrickwarner/openwrap-setup/internal/models"
)

//go:embed snippets/*.html
var snippetFS embed.FS

const (
	snippetDefault = "creative_snippet_openwrap.html"
	snippetInApp   = "creative_snippet_openwrap_in_app.html"
	snippetAMP     = "creative_snippet_openwrap_amp.html"
	snippetSF      = "creative_snippet_openwrap_sf.html"
)

// SnippetFile returns the snippet file used for third-party creatives of st.
func SnippetFile(st models.SetupType) string {
	switch st {
	case models.SetupInApp, models.SetupInAppVideo, models.SetupInAppNative:
		return snippetInApp
	case models.SetupAMP:
		return snippetAMP
	case models.SetupVideo, models.SetupJWPlayer, models.SetupAdPod:
		return snippetSF
	default:
		return snippetDefault
	}
}

// Snippet returns the HTML snippet for st.
func Snippet(st models.SetupType) (string, error) {
	name := SnippetFile(st)
	b, err := snippetFS.ReadFile("snippets/" + name)
	if err != nil {
		return "", fmt.Errorf("read snippet %s: %w", name, err)
	}
	return string(b), nil
}
