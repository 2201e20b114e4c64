// internal/liturgy/context.go
package liturgy

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/kidase-app/kidase-rules/internal/calendar"
	"github.com/kidase-app/kidase-rules/internal/rules"
	"github.com/kidase-app/kidase-rules/internal/types"
)

/*
 * Context assembly.
 *
 * One Context is built per evaluation batch and reused for the whole batch;
 * every date fact in meta is derived from a single reference instant so a
 * midnight rollover mid-batch cannot split the facts. The converted-calendar
 * fields nest under the converter's name (meta.ethiopian.*), keeping the
 * engine free of calendar knowledge.
 *
 * Variables surface under both "vars.name" and "vars.[name]": rule authors
 * coming from the spreadsheet side write bracketed placeholders and the two
 * spellings must resolve identically. The "language" setting picks which
 * per-language variable value both spellings carry.
 */

// Builder assembles evaluation contexts from a reference time and the
// presentation's stored state.
type Builder struct {
	converter calendar.Converter
	holidays  calendar.HolidayLookup
	clock     rules.Clock
	logger    *slog.Logger
}

// BuilderOptions configures a Builder; nil fields select defaults.
type BuilderOptions struct {
	Converter calendar.Converter
	Holidays  calendar.HolidayLookup
	Clock     rules.Clock
	Logger    *slog.Logger
}

func NewBuilder(opts BuilderOptions) *Builder {
	if opts.Converter == nil {
		opts.Converter = calendar.NewEthiopian()
	}
	if opts.Holidays == nil {
		opts.Holidays = calendar.NewEthiopianHolidays()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Builder{
		converter: opts.Converter,
		holidays:  opts.Holidays,
		clock:     opts.Clock,
		logger:    opts.Logger,
	}
}

// Snapshot is the stored state a context is built from.
type Snapshot struct {
	// At is the reference instant; zero means the builder's clock.
	At           time.Time
	Presentation map[string]any
	Slide        map[string]any
	Settings     map[string]any
	Vars         []types.Variable
}

// dayNames are the three-letter day names rules match against.
var dayNames = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Build assembles the evaluation context for one batch.
func (b *Builder) Build(snap Snapshot) *rules.Context {
	at := snap.At
	if at.IsZero() {
		at = b.clock()
	}

	converted := b.converter.FromGregorian(at)
	meta := map[string]any{
		"date":      at.Format("2006-01-02"),
		"dateTime":  at.Format(time.RFC3339),
		"year":      at.Year(),
		"month":     int(at.Month()),
		"day":       at.Day(),
		"dayOfWeek": dayNames[int(at.Weekday())],
		b.converter.Name(): map[string]any{
			"year":      converted.Year,
			"month":     converted.Month,
			"day":       converted.Day,
			"monthName": b.converter.MonthName(converted.Month),
		},
	}
	if name, ok := b.holidays.Holiday(converted); ok {
		meta["holiday"] = name
	}

	lang := settingLanguage(snap.Settings)
	vars := make(map[string]any, 2*len(snap.Vars))
	for _, v := range snap.Vars {
		value := v.ValueIn(lang)
		vars[v.Name] = value
		vars[fmt.Sprintf("[%s]", v.Name)] = value
	}

	return &rules.Context{
		Presentation: snap.Presentation,
		Slide:        snap.Slide,
		Vars:         vars,
		Settings:     snap.Settings,
		Meta:         meta,
	}
}

// settingLanguage reads the 1-based display-language index from settings.
// Stored settings are strings; request payloads may carry JSON numbers.
func settingLanguage(settings map[string]any) int {
	switch v := settings["language"].(type) {
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	case float64:
		return int(v)
	case int:
		return v
	}
	return 1
}

// ForSlide returns a copy of ctx carrying a different slide snapshot while
// sharing the batch's meta, vars, and settings.
func (b *Builder) ForSlide(ctx *rules.Context, slide map[string]any) *rules.Context {
	return &rules.Context{
		Presentation: ctx.Presentation,
		Slide:        slide,
		Vars:         ctx.Vars,
		Settings:     ctx.Settings,
		Meta:         ctx.Meta,
	}
}
