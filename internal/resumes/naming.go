package resumes

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"golang.org/x/text/language"

	"aicv-backend/internal/shared/telemetry"
)

var (
	localeZH = language.MustParse("zh-CN")
	localeEN = language.MustParse("en-US")

	nameLocales = []language.Tag{localeZH, localeEN}
	nameMatcher = language.NewMatcher(nameLocales)
)

// Namer produces the default name of a resume created without one.
type Namer struct {
	fallback language.Tag
	loc      *time.Location
}

// NewNamer builds a Namer. locale is used when the request carries no usable
// Accept-Language; tz is the IANA zone the creation time is shown in.
func NewNamer(locale, tz string) *Namer {
	n := &Namer{fallback: localeZH, loc: time.UTC}
	if tag, ok := matchLocale(locale); ok {
		n.fallback = tag
	}
	if tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			telemetry.Warn("resumes.naming.bad_timezone", map[string]any{"tz": tz, "error": err})
		} else {
			n.loc = loc
		}
	}
	return n
}

// DefaultName formats the creation time in the best-matching locale.
func (n *Namer) DefaultName(acceptLanguage string, at time.Time) string {
	tag := n.fallback
	if matched, ok := matchAcceptLanguage(acceptLanguage); ok {
		tag = matched
	}
	t := at.In(n.loc)
	if tag == localeEN {
		return fmt.Sprintf("Resume created %s %d, %02d:%02d", t.Month(), t.Day(), t.Hour(), t.Minute())
	}
	return fmt.Sprintf("%d月%d日 %02d:%02d 创建的简历", int(t.Month()), t.Day(), t.Hour(), t.Minute())
}

func matchLocale(v string) (language.Tag, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return language.Und, false
	}
	tag, err := language.Parse(v)
	if err != nil {
		return language.Und, false
	}
	return match(tag)
}

func matchAcceptLanguage(header string) (language.Tag, bool) {
	if strings.TrimSpace(header) == "" {
		return language.Und, false
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return language.Und, false
	}
	return match(tags...)
}

func match(tags ...language.Tag) (language.Tag, bool) {
	_, idx, conf := nameMatcher.Match(tags...)
	if conf == language.No {
		return language.Und, false
	}
	return nameLocales[idx], true
}
