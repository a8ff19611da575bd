package content

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderBasicBindings(t *testing.T) {
	r := NewRenderer()
	out, err := r.Render("", "Hello {{ name }}!", map[string]interface{}{"name": "Maria"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Maria!", out)
}

func TestRenderReturnsOriginalOnParseError(t *testing.T) {
	r := NewRenderer()
	src := "Hello {% if %}"
	out, err := r.Render("", src, nil)
	assert.Error(t, err)
	assert.Equal(t, src, out)
}

func TestRenderCachesParsedTemplates(t *testing.T) {
	r := NewRenderer()
	src := "{{ greeting }}"

	out, err := r.Render("email-greeting", src, map[string]interface{}{"greeting": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)

	// Same cache key, different bindings: the cached parse is reused.
	out, err = r.Render("email-greeting", "IGNORED {{ greeting }}", map[string]interface{}{"greeting": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	r.ClearCache()
	out, err = r.Render("email-greeting", "fresh {{ greeting }}", map[string]interface{}{"greeting": "hey"})
	require.NoError(t, err)
	assert.Equal(t, "fresh hey", out)
}

func TestDefaultFilter(t *testing.T) {
	r := NewRenderer()
	tests := []struct {
		name     string
		bindings map[string]interface{}
		want     string
	}{
		{"missing", map[string]interface{}{}, "there"},
		{"empty", map[string]interface{}{"first_name": ""}, "there"},
		{"set", map[string]interface{}{"first_name": "Maria"}, "Maria"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Render("", `{{ first_name | default: "there" }}`, tt.bindings)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestMoneyFilter(t *testing.T) {
	r := NewRenderer()
	tests := []struct {
		in   interface{}
		want string
	}{
		{"1250", "$1,250.00"},
		{"1250.5", "$1,250.50"},
		{"999", "$999.00"},
		{"1234567.89", "$1,234,567.89"},
		{"not-a-number", "not-a-number"},
	}
	for _, tt := range tests {
		out, err := r.Render("", "{{ amount | money }}", map[string]interface{}{"amount": tt.in})
		require.NoError(t, err)
		assert.Equal(t, tt.want, out)
	}
}

func TestDateLongFilter(t *testing.T) {
	r := NewRenderer()
	published := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	out, err := r.Render("", "{{ published_at | date_long }}", map[string]interface{}{"published_at": published})
	require.NoError(t, err)
	assert.Equal(t, "March 2, 2026", out)
}

func TestTruncateWordsFilter(t *testing.T) {
	r := NewRenderer()
	out, err := r.Render("", "{{ summary | truncate_words: 3 }}", map[string]interface{}{
		"summary": "one two three four five",
	})
	require.NoError(t, err)
	assert.Equal(t, "one two three...", out)

	out, err = r.Render("", "{{ summary | truncate_words: 10 }}", map[string]interface{}{
		"summary": "short enough",
	})
	require.NoError(t, err)
	assert.Equal(t, "short enough", out)
}

func TestSlugifyFilter(t *testing.T) {
	r := NewRenderer()
	out, err := r.Render("", "{{ title | slugify }}", map[string]interface{}{"title": "Five Local SEO Wins"})
	require.NoError(t, err)
	assert.Equal(t, "five-local-seo-wins", out)
}

func TestValidateReportsUnboundRoots(t *testing.T) {
	r := NewRenderer()
	missing := r.Validate("{{ post.title }} {{ invoice.amount | money }} {{ post.slug }}",
		map[string]interface{}{"post": map[string]interface{}{}})
	assert.Equal(t, []string{"invoice"}, missing)

	missing = r.Validate("no variables here", nil)
	assert.Empty(t, missing)
}

func TestGroupThousands(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0.00", "0.00"},
		{"999.00", "999.00"},
		{"1000.00", "1,000.00"},
		{"1234567.89", "1,234,567.89"},
		{"-1234.50", "-1,234.50"},
	}
	for _, tt := range tests {
		if got := groupThousands(tt.in); got != tt.want {
			t.Errorf("groupThousands(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
