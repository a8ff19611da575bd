package content

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/osteele/liquid"
	"github.com/shopspring/decimal"

	"github.com/ignite/agency-portal/internal/pkg/logger"
)

// Renderer renders Liquid templates for blog pages and invoice emails,
// with parsed-template caching.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewRenderer creates a Renderer with the portal's custom filters
// registered.
func NewRenderer() *Renderer {
	r := &Renderer{engine: liquid.NewEngine()}
	r.registerFilters()
	return r
}

func (r *Renderer) registerFilters() {
	// {{ first_name | default: "there" }}
	r.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		strVal := fmt.Sprintf("%v", value)
		if strVal == "" || strVal == "<nil>" {
			return defaultVal
		}
		return value
	})

	// {{ post.title | slugify }}
	r.engine.RegisterFilter("slugify", func(value interface{}) string {
		return Slugify(fmt.Sprintf("%v", value))
	})

	// {{ invoice.amount | money }} -> $1,250.00
	r.engine.RegisterFilter("money", func(value interface{}) string {
		d, err := decimal.NewFromString(fmt.Sprintf("%v", value))
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return "$" + groupThousands(d.StringFixed(2))
	})

	// {{ post.published_at | date_long }} -> January 2, 2006
	r.engine.RegisterFilter("date_long", func(value interface{}) string {
		switch t := value.(type) {
		case time.Time:
			return t.Format("January 2, 2006")
		case string:
			if parsed, err := time.Parse(time.RFC3339, t); err == nil {
				return parsed.Format("January 2, 2006")
			}
			return t
		default:
			return fmt.Sprintf("%v", value)
		}
	})

	// {{ post.summary | truncate_words: 30 }}
	r.engine.RegisterFilter("truncate_words", func(value interface{}, n int) string {
		words := strings.Fields(fmt.Sprintf("%v", value))
		if len(words) <= n {
			return strings.Join(words, " ")
		}
		return strings.Join(words[:n], " ") + "..."
	})
}

// Render parses and renders a template. When cacheKey is non-empty the
// parsed template is reused across calls. On error the original template
// string is returned alongside the error so callers can degrade.
func (r *Renderer) Render(cacheKey, templateStr string, bindings map[string]interface{}) (string, error) {
	if cacheKey != "" {
		if cached, ok := r.cache.Load(cacheKey); ok {
			tpl := cached.(*liquid.Template)
			return tpl.RenderString(bindings)
		}
	}

	tpl, err := r.engine.ParseString(templateStr)
	if err != nil {
		logger.Warn("template parse failed", "cache_key", cacheKey, "error", err.Error())
		return templateStr, err
	}
	if cacheKey != "" {
		r.cache.Store(cacheKey, tpl)
	}

	out, err := tpl.RenderString(bindings)
	if err != nil {
		logger.Warn("template render failed", "cache_key", cacheKey, "error", err.Error())
		return templateStr, err
	}
	return out, nil
}

// Validate reports the unbound variables a template references.
func (r *Renderer) Validate(templateStr string, bindings map[string]interface{}) []string {
	var missing []string
	for _, m := range liquidVarRe.FindAllStringSubmatch(templateStr, -1) {
		name := strings.TrimSpace(m[1])
		// Only the root of a dotted path is checked.
		root := strings.SplitN(name, ".", 2)[0]
		if _, ok := bindings[root]; !ok && !contains(missing, root) {
			missing = append(missing, root)
		}
	}
	return missing
}

// ClearCache drops every cached parsed template.
func (r *Renderer) ClearCache() {
	r.cache.Range(func(key, _ interface{}) bool {
		r.cache.Delete(key)
		return true
	})
}

var liquidVarRe = regexp.MustCompile(`\{\{\s*([^}|]+)`)

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// groupThousands inserts commas into the integer part of a fixed-point
// decimal string.
func groupThousands(s string) string {
	intPart, frac, _ := strings.Cut(s, ".")
	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}
	var b strings.Builder
	for i, ch := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	out := b.String()
	if neg {
		out = "-" + out
	}
	if frac != "" {
		out += "." + frac
	}
	return out
}
