package widgets

import (
	"time"

	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

var clockTimeZones = []string{
	"UTC",
	"America/New_York",
	"America/Los_Angeles",
	"Europe/London",
	"Europe/Paris",
	"Asia/Tokyo",
	"Australia/Sydney",
}

type clock struct {
	now func() time.Time
}

// NewClock renders the time returned by now, or time.Now when nil.
func NewClock(now func() time.Time) Plugin {
	if now == nil {
		now = time.Now
	}
	return &clock{now: now}
}

func (c *clock) Key() string   { return "clock" }
func (c *clock) Title() string { return "Clock" }

func (c *clock) DefaultConfig() models.WidgetConfig {
	return models.WidgetConfig{
		"showSeconds":     true,
		"showDate":        true,
		"use24HourFormat": false,
		"timeZone":        "UTC",
		"textColor":       "#FFFFFF",
		"fontSize":        48.0,
		"dateFormat":      "en-US",
		"clockType":       "digital",
		"backgroundColor": "#000000",
		"transparency":    0.0,
	}
}

func (c *clock) Render(p Props) View {
	tzName := str(p.Config, "timeZone", "UTC")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		loc, tzName = time.UTC, "UTC"
	}
	now := c.now().In(loc)

	var layout string
	switch {
	case boolean(p.Config, "use24HourFormat", false) && boolean(p.Config, "showSeconds", true):
		layout = "15:04:05"
	case boolean(p.Config, "use24HourFormat", false):
		layout = "15:04"
	case boolean(p.Config, "showSeconds", true):
		layout = "3:04:05 PM"
	default:
		layout = "3:04 PM"
	}

	v := View{
		Title: tzName,
		Lines: []string{now.Format(layout)},
		Data: map[string]any{
			"time":      now.Format(time.RFC3339),
			"timeZone":  tzName,
			"clockType": str(p.Config, "clockType", "digital"),
		},
	}
	if boolean(p.Config, "showDate", true) {
		v.Lines = append(v.Lines, now.Format("Monday, January 2, 2006"))
	}
	return v
}

func (c *clock) Options(p Props) []Option {
	return []Option{
		{Key: "clockType", Label: "Clock type", Kind: OptionSelect, Choices: []string{"digital", "analog"}, Value: str(p.Config, "clockType", "digital")},
		{Key: "timeZone", Label: "Time zone", Kind: OptionSelect, Choices: clockTimeZones, Value: str(p.Config, "timeZone", "UTC")},
		{Key: "showSeconds", Label: "Show seconds", Kind: OptionBool, Value: boolean(p.Config, "showSeconds", true)},
		{Key: "showDate", Label: "Show date", Kind: OptionBool, Value: boolean(p.Config, "showDate", true)},
		{Key: "use24HourFormat", Label: "24-hour format", Kind: OptionBool, Value: boolean(p.Config, "use24HourFormat", false)},
		{Key: "fontSize", Label: "Font size", Kind: OptionNumber, Value: number(p.Config, "fontSize", 48)},
		{Key: "textColor", Label: "Text color", Kind: OptionText, Value: str(p.Config, "textColor", "#FFFFFF")},
	}
}
