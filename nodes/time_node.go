package nodes

import (
	"fmt"
	"strings"
	"time"

	"github.com/lyzr/flowengine/sdk"
)

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

// Time returns timezone-aware current (or derived) time fields, and
// supports add_time/subtract_time, start_of/end_of, and
// next_weekday/previous_weekday derivations over params["operation"].
func Time(hctx *sdk.HandlerContext, params map[string]interface{}, _ map[string]interface{}) (interface{}, error) {
	loc := time.UTC
	tzName, _ := params["timezone"].(string)
	if tzName != "" {
		l, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, sdk.NewError(sdk.ErrHandlerError, "unknown timezone: "+tzName, err)
		}
		loc = l
	}

	base := hctx.Clock()
	if baseStr, ok := params["base"].(string); ok && baseStr != "" {
		t, err := time.Parse(time.RFC3339, baseStr)
		if err != nil {
			return nil, sdk.NewError(sdk.ErrHandlerError, "invalid base time: "+baseStr, err)
		}
		base = t
	}
	base = base.In(loc)

	op, _ := params["operation"].(string)
	result, err := applyTimeOperation(base, op, params)
	if err != nil {
		return nil, err
	}

	out := map[string]interface{}{
		"iso":           result.Format(time.RFC3339),
		"timestamp":     result.Unix(),
		"year":          result.Year(),
		"month":         int(result.Month()),
		"day":           result.Day(),
		"hour":          result.Hour(),
		"minute":        result.Minute(),
		"second":        result.Second(),
		"timezone":      loc.String(),
		"day_of_week":   result.Weekday().String(),
		"month_name":    result.Month().String(),
		"utc_offset":    utcOffset(result),
		"is_dst":        isDST(result),
		"output":        result.Format(time.RFC3339),
	}
	if layout, ok := params["custom_format"].(string); ok && layout != "" {
		out["custom_formatted"] = result.Format(goLayout(layout))
	}
	return out, nil
}

func applyTimeOperation(base time.Time, op string, params map[string]interface{}) (time.Time, error) {
	unit, _ := params["unit"].(string)
	amount := intParam(params["amount"], 1)

	switch op {
	case "", "now":
		return base, nil
	case "add_time":
		return addUnit(base, unit, amount)
	case "subtract_time":
		return addUnit(base, unit, -amount)
	case "start_of":
		return startOf(base, unit), nil
	case "end_of":
		return endOf(base, unit), nil
	case "next_weekday":
		return nearestWeekday(base, params["weekday"], true)
	case "previous_weekday":
		return nearestWeekday(base, params["weekday"], false)
	default:
		return time.Time{}, sdk.NewError(sdk.ErrInvalidWorkflow, "unknown time operation: "+op, nil)
	}
}

func addUnit(base time.Time, unit string, amount int) (time.Time, error) {
	switch unit {
	case "second":
		return base.Add(time.Duration(amount) * time.Second), nil
	case "minute":
		return base.Add(time.Duration(amount) * time.Minute), nil
	case "hour":
		return base.Add(time.Duration(amount) * time.Hour), nil
	case "day":
		return base.AddDate(0, 0, amount), nil
	case "week":
		return base.AddDate(0, 0, amount*7), nil
	case "month":
		return base.AddDate(0, amount, 0), nil
	case "year":
		return base.AddDate(amount, 0, 0), nil
	case "business_day":
		return addBusinessDays(base, amount), nil
	default:
		return time.Time{}, sdk.NewError(sdk.ErrInvalidWorkflow, "unknown time unit: "+unit, nil)
	}
}

func addBusinessDays(base time.Time, amount int) time.Time {
	step := 1
	if amount < 0 {
		step = -1
		amount = -amount
	}
	t := base
	for amount > 0 {
		t = t.AddDate(0, 0, step)
		if t.Weekday() != time.Saturday && t.Weekday() != time.Sunday {
			amount--
		}
	}
	return t
}

func startOf(base time.Time, unit string) time.Time {
	loc := base.Location()
	switch unit {
	case "day":
		return time.Date(base.Year(), base.Month(), base.Day(), 0, 0, 0, 0, loc)
	case "week":
		d := time.Date(base.Year(), base.Month(), base.Day(), 0, 0, 0, 0, loc)
		offset := int(d.Weekday())
		return d.AddDate(0, 0, -offset)
	case "month":
		return time.Date(base.Year(), base.Month(), 1, 0, 0, 0, 0, loc)
	case "quarter":
		q := (int(base.Month()) - 1) / 3
		return time.Date(base.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, loc)
	case "year":
		return time.Date(base.Year(), time.January, 1, 0, 0, 0, 0, loc)
	default:
		return base
	}
}

func endOf(base time.Time, unit string) time.Time {
	start := startOf(base, unit)
	switch unit {
	case "day":
		return start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	case "week":
		return start.AddDate(0, 0, 7).Add(-time.Nanosecond)
	case "month":
		return start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	case "quarter":
		return start.AddDate(0, 3, 0).Add(-time.Nanosecond)
	case "year":
		return start.AddDate(1, 0, 0).Add(-time.Nanosecond)
	default:
		return base
	}
}

func nearestWeekday(base time.Time, weekdayParam interface{}, forward bool) (time.Time, error) {
	name, _ := weekdayParam.(string)
	wd, ok := weekdayNames[strings.ToLower(name)]
	if !ok {
		return time.Time{}, sdk.NewError(sdk.ErrInvalidWorkflow, "unknown weekday: "+name, nil)
	}
	step := 1
	if !forward {
		step = -1
	}
	t := base
	for {
		t = t.AddDate(0, 0, step)
		if t.Weekday() == wd {
			return t, nil
		}
	}
}

func utcOffset(t time.Time) string {
	_, offset := t.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return fmt.Sprintf("%s%02d:%02d", sign, offset/3600, (offset%3600)/60)
}

func isDST(t time.Time) bool {
	_, stdOffset := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location()).Zone()
	_, curOffset := t.Zone()
	return curOffset != stdOffset
}

// goLayout accepts either a Go reference-time layout directly or a
// handful of common strftime-style tokens, translated to Go's layout.
func goLayout(layout string) string {
	replacer := []struct{ from, to string }{
		{"%Y", "2006"}, {"%m", "01"}, {"%d", "02"},
		{"%H", "15"}, {"%M", "04"}, {"%S", "05"},
	}
	out := layout
	for _, r := range replacer {
		out = strings.ReplaceAll(out, r.from, r.to)
	}
	return out
}

func intParam(v interface{}, def int) int {
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	default:
		return def
	}
}
