package macros

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// MacroExpander expands {MACRO} placeholders in creative names, VAST URLs
// and snippets. Values are inserted verbatim; ad server %%PATTERN%% macros
// pass through untouched.
type MacroExpander struct {
	logger       *zap.Logger
	expansions   map[string]ExpansionFunc
	expansionsMu sync.RWMutex
	strictMode   bool // If true, any macro expansion failure fails the whole template

	// Metrics
	expansionCounter  *prometheus.CounterVec
	expansionDuration prometheus.Histogram
	failureCounter    *prometheus.CounterVec
}

// ExpansionFunc defines the signature for macro expansion functions
type ExpansionFunc func(ctx *ExpansionContext) (string, error)

// ExpansionContext contains all data available for macro expansion
type ExpansionContext struct {
	// Run context
	Order    string
	Prefix   string
	Bidder   string
	CacheURL string
	UniqueID string

	// Creative context
	Width    int
	Height   int
	Num      int
	Slot     string
	Duration int
	Template int64

	// Custom parameters
	CustomParams map[string]string
}

// NewMacroExpander creates a new macro expander with default macros
func NewMacroExpander(logger *zap.Logger) *MacroExpander {
	return NewMacroExpanderWithMode(logger, true)
}

// NewMacroExpanderWithMode creates a new macro expander with configurable strict/lenient mode
func NewMacroExpanderWithMode(logger *zap.Logger, strictMode bool) *MacroExpander {
	expander := &MacroExpander{
		logger:     logger,
		expansions: make(map[string]ExpansionFunc),
		strictMode: strictMode,

		// Use global registry for production observability
		expansionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "owsetup_macro_expansions_total",
				Help: "Total number of macro expansions performed",
			},
			[]string{"macro", "success"},
		),
		expansionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "owsetup_macro_expansion_duration_seconds",
				Help:    "Time taken to expand all macros in a template",
				Buckets: prometheus.DefBuckets,
			},
		),
		failureCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "owsetup_macro_expansion_failures_total",
				Help: "Total number of macro expansion failures",
			},
			[]string{"macro", "error_type"},
		),
	}

	expander.registerDefaultMacros()
	return expander
}

// NewMacroExpanderForTesting creates a new macro expander with a custom registry for testing
func NewMacroExpanderForTesting(logger *zap.Logger, strictMode bool) *MacroExpander {
	// Use a custom registry to avoid conflicts in tests
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	expander := &MacroExpander{
		logger:     logger,
		expansions: make(map[string]ExpansionFunc),
		strictMode: strictMode,

		expansionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "owsetup_macro_expansions_total",
				Help: "Total number of macro expansions performed",
			},
			[]string{"macro", "success"},
		),
		expansionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "owsetup_macro_expansion_duration_seconds",
				Help:    "Time taken to expand all macros in a template",
				Buckets: prometheus.DefBuckets,
			},
		),
		failureCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "owsetup_macro_expansion_failures_total",
				Help: "Total number of macro expansion failures",
			},
			[]string{"macro", "error_type"},
		),
	}

	expander.registerDefaultMacros()
	return expander
}

// SetStrictMode enables or disables strict macro expansion mode
func (e *MacroExpander) SetStrictMode(strict bool) {
	e.strictMode = strict
}

// Expand expands all macros in template.
func (e *MacroExpander) Expand(template string, ctx *ExpansionContext) (string, error) {
	start := time.Now()
	defer func() {
		e.expansionDuration.Observe(time.Since(start).Seconds())
	}()

	if template == "" {
		return "", nil
	}

	// {CUSTOM.key} first so the generic scan does not see them
	expanded := e.expandCustomParams(template, ctx)

	expanded, macrosFound, err := e.expandStandardMacros(expanded, ctx)
	if err != nil {
		if e.strictMode {
			return "", err
		}
		e.logger.Warn("Macro expansion completed with errors, continuing with partial expansion",
			zap.String("template", template),
			zap.String("partial", expanded),
			zap.Error(err))
	}

	if unknown := e.Validate(expanded); len(unknown) > 0 && e.strictMode {
		return "", fmt.Errorf("unsupported macros %v in %q", unknown, template)
	}

	if macrosFound > 0 {
		e.logger.Debug("Expanded macros",
			zap.String("template", template),
			zap.String("expanded", expanded),
			zap.Int("macros_found", macrosFound))
	}

	return expanded, nil
}

// expandStandardMacros replaces every registered macro present in template
// in one pass.
func (e *MacroExpander) expandStandardMacros(template string, ctx *ExpansionContext) (string, int, error) {
	e.expansionsMu.RLock()
	defer e.expansionsMu.RUnlock()

	var foundMacros []string
	for macro := range e.expansions {
		if strings.Contains(template, "{"+macro+"}") {
			foundMacros = append(foundMacros, macro)
		}
	}
	if len(foundMacros) == 0 {
		return template, 0, nil
	}

	var replacements []string
	var firstErr error
	for _, macro := range foundMacros {
		value, err := e.expansions[macro](ctx)
		if err != nil {
			e.expansionCounter.WithLabelValues(macro, "false").Inc()
			e.failureCounter.WithLabelValues(macro, "expansion_error").Inc()
			e.logger.Error("Failed to expand macro",
				zap.String("macro", macro),
				zap.String("template", template),
				zap.Error(err))
			if e.strictMode {
				return "", 0, fmt.Errorf("macro expansion failed in strict mode for macro '%s': %w", macro, err)
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("expand %s: %w", macro, err)
			}
			continue
		}
		replacements = append(replacements, "{"+macro+"}", value)
		e.expansionCounter.WithLabelValues(macro, "true").Inc()
	}

	if len(replacements) == 0 {
		return template, 0, firstErr
	}
	return strings.NewReplacer(replacements...).Replace(template), len(foundMacros), firstErr
}

// RegisterMacro adds a custom macro expansion function
func (e *MacroExpander) RegisterMacro(name string, expansionFunc ExpansionFunc) error {
	if name == "" {
		return fmt.Errorf("macro name cannot be empty")
	}
	if expansionFunc == nil {
		return fmt.Errorf("expansion function cannot be nil")
	}

	e.expansionsMu.Lock()
	defer e.expansionsMu.Unlock()
	e.expansions[name] = expansionFunc

	e.logger.Info("Registered custom macro", zap.String("macro", name))
	return nil
}

// GetRegisteredMacros returns a list of all registered macro names
func (e *MacroExpander) GetRegisteredMacros() []string {
	e.expansionsMu.RLock()
	defer e.expansionsMu.RUnlock()

	macros := make([]string, 0, len(e.expansions))
	for name := range e.expansions {
		macros = append(macros, name)
	}
	return macros
}

func (e *MacroExpander) registerDefaultMacros() {
	e.expansions["ORDER"] = func(ctx *ExpansionContext) (string, error) {
		return ctx.Order, nil
	}
	e.expansions["PREFIX"] = func(ctx *ExpansionContext) (string, error) {
		return ctx.Prefix, nil
	}
	e.expansions["BIDDER"] = func(ctx *ExpansionContext) (string, error) {
		return ctx.Bidder, nil
	}
	e.expansions["CACHE_URL"] = func(ctx *ExpansionContext) (string, error) {
		if ctx.CacheURL == "" {
			return "", fmt.Errorf("no cache url")
		}
		return strings.TrimRight(ctx.CacheURL, "/"), nil
	}

	e.expansions["WIDTH"] = func(ctx *ExpansionContext) (string, error) {
		return strconv.Itoa(ctx.Width), nil
	}
	e.expansions["HEIGHT"] = func(ctx *ExpansionContext) (string, error) {
		return strconv.Itoa(ctx.Height), nil
	}
	e.expansions["NUM"] = func(ctx *ExpansionContext) (string, error) {
		return strconv.Itoa(ctx.Num), nil
	}
	e.expansions["SLOT"] = func(ctx *ExpansionContext) (string, error) {
		if ctx.Slot == "" {
			return "", fmt.Errorf("no slot")
		}
		return ctx.Slot, nil
	}
	e.expansions["DURATION"] = func(ctx *ExpansionContext) (string, error) {
		return strconv.Itoa(ctx.Duration), nil
	}
	e.expansions["TEMPLATE_ID"] = func(ctx *ExpansionContext) (string, error) {
		return strconv.FormatInt(ctx.Template, 10), nil
	}

	// a run shares one id across creatives; a fresh one otherwise
	e.expansions["UUID"] = func(ctx *ExpansionContext) (string, error) {
		if ctx.UniqueID != "" {
			return ctx.UniqueID, nil
		}
		return uuid.New().String(), nil
	}

	e.expansions["CUSTOM"] = func(ctx *ExpansionContext) (string, error) {
		// This is a special case - CUSTOM.key will be handled separately
		return "", fmt.Errorf("CUSTOM macro requires a parameter key")
	}
}

// ExpandCustomParameter expands custom parameters like {CUSTOM.key}
func (e *MacroExpander) ExpandCustomParameter(key string, ctx *ExpansionContext) (string, error) {
	if ctx.CustomParams == nil {
		return "", fmt.Errorf("no custom parameters available")
	}
	value, exists := ctx.CustomParams[key]
	if !exists {
		return "", fmt.Errorf("custom parameter '%s' not found", key)
	}
	return value, nil
}

// expandCustomParams expands {CUSTOM.key} patterns
func (e *MacroExpander) expandCustomParams(template string, ctx *ExpansionContext) string {
	if ctx.CustomParams == nil {
		return template
	}
	expanded := template
	for key, value := range ctx.CustomParams {
		expanded = strings.ReplaceAll(expanded, "{CUSTOM."+key+"}", value)
	}
	return expanded
}

// Validate returns the {MACRO} names in template that no expansion handles.
func (e *MacroExpander) Validate(template string) []string {
	var unsupported []string

	macroStart := 0
	for {
		start := strings.Index(template[macroStart:], "{")
		if start == -1 {
			break
		}
		start += macroStart

		end := strings.Index(template[start:], "}")
		if end == -1 {
			break
		}
		end += start

		macro := template[start+1 : end]
		macroStart = end + 1

		if strings.HasPrefix(macro, "CUSTOM.") || !isMacroName(macro) {
			continue
		}

		e.expansionsMu.RLock()
		_, supported := e.expansions[macro]
		e.expansionsMu.RUnlock()

		if !supported {
			unsupported = append(unsupported, macro)
		}
	}
	return unsupported
}

// isMacroName keeps JSON and script braces in snippets from being taken as
// macros.
func isMacroName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') && r != '_' {
			return false
		}
	}
	return true
}
