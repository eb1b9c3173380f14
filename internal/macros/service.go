package macros

import (
	"fmt"

	"go.uber.org/zap"
)

// Templates holds the naming and URL templates used for generated creatives.
type Templates struct {
	DisplayName         string
	DisplayNameUnsized  string
	DisplayNamePrefixed string
	NativeName          string
	VideoName           string
	AdPodName           string
	AdPodVastURL        string
}

// DefaultTemplates returns the stock OpenWrap naming scheme.
func DefaultTemplates() Templates {
	return Templates{
		DisplayName:         "{BIDDER}: HB {ORDER}, {WIDTH}x{HEIGHT} #{NUM}",
		DisplayNameUnsized:  "{BIDDER}: HB {ORDER}, #{NUM}",
		DisplayNamePrefixed: "{PREFIX}_{WIDTH}x{HEIGHT}",
		NativeName:          "{PREFIX}_{TEMPLATE_ID}_native",
		VideoName:           "{PREFIX}_{WIDTH}x{HEIGHT}_VASTCREATIVE",
		AdPodName:           "{SLOT}_{WIDTH}x{HEIGHT}_{DURATION}SecondAd_{UUID}",
		AdPodVastURL:        "{CACHE_URL}/cache?uuid=%%PATTERN:{SLOT}_pwtcid%%",
	}
}

// Service renders creative names and VAST URLs from Templates.
type Service struct {
	expander  *MacroExpander
	templates Templates
	logger    *zap.Logger
}

// NewService creates a new template service
func NewService(logger *zap.Logger, templates Templates) *Service {
	return &Service{
		expander:  NewMacroExpander(logger),
		templates: templates,
		logger:    logger.Named("macro_service"),
	}
}

// NewServiceForTesting creates a template service with isolated metrics
func NewServiceForTesting(logger *zap.Logger) *Service {
	return &Service{
		expander:  NewMacroExpanderForTesting(logger, true),
		templates: DefaultTemplates(),
		logger:    logger.Named("macro_service"),
	}
}

// RegisterCustomMacro allows registration of additional macro expansion functions
func (s *Service) RegisterCustomMacro(name string, expansionFunc ExpansionFunc) error {
	return s.expander.RegisterMacro(name, expansionFunc)
}

// GetRegisteredMacros returns a list of all registered macro names
func (s *Service) GetRegisteredMacros() []string {
	return s.expander.GetRegisteredMacros()
}

// Templates returns the configured templates.
func (s *Service) Templates() Templates {
	return s.templates
}

// Check reports the first template that uses an unsupported macro.
func (s *Service) Check() error {
	named := map[string]string{
		"display_name":          s.templates.DisplayName,
		"display_name_unsized":  s.templates.DisplayNameUnsized,
		"display_name_prefixed": s.templates.DisplayNamePrefixed,
		"native_name":           s.templates.NativeName,
		"video_name":            s.templates.VideoName,
		"adpod_name":            s.templates.AdPodName,
		"adpod_vast_url":        s.templates.AdPodVastURL,
	}
	for name, tmpl := range named {
		if tmpl == "" {
			return fmt.Errorf("template %s is empty", name)
		}
		if bad := s.expander.Validate(tmpl); len(bad) > 0 {
			return fmt.Errorf("template %s: unsupported macros %v", name, bad)
		}
	}
	return nil
}

// Render expands an arbitrary template.
func (s *Service) Render(template string, ctx *ExpansionContext) (string, error) {
	return s.expander.Expand(template, ctx)
}

// DisplayName names a third-party creative. A prefix wins over the
// bidder/order form; sized selects the WxH variant.
func (s *Service) DisplayName(ctx *ExpansionContext, sized bool) (string, error) {
	switch {
	case ctx.Prefix != "":
		if !sized {
			ctx.Width, ctx.Height = 1, 1
		}
		return s.Render(s.templates.DisplayNamePrefixed, ctx)
	case sized:
		return s.Render(s.templates.DisplayName, ctx)
	default:
		return s.Render(s.templates.DisplayNameUnsized, ctx)
	}
}

// NativeName names a native template creative.
func (s *Service) NativeName(ctx *ExpansionContext) (string, error) {
	return s.Render(s.templates.NativeName, ctx)
}

// VideoName names a VAST redirect creative.
func (s *Service) VideoName(ctx *ExpansionContext) (string, error) {
	return s.Render(s.templates.VideoName, ctx)
}

// AdPodName names one ad pod creative.
func (s *Service) AdPodName(ctx *ExpansionContext) (string, error) {
	return s.Render(s.templates.AdPodName, ctx)
}

// AdPodVastURL renders the cache redirect URL for a pod slot.
func (s *Service) AdPodVastURL(ctx *ExpansionContext) (string, error) {
	return s.Render(s.templates.AdPodVastURL, ctx)
}
