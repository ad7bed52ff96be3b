package widgets

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

// unitFactors holds, per category, how many of each unit make one base unit.
var unitFactors = map[string]map[string]float64{
	"length": {"meters": 1, "feet": 3.28084, "inches": 39.3701, "kilometers": 0.001, "miles": 0.000621371},
	"weight": {"kilograms": 1, "pounds": 2.20462, "ounces": 35.274, "grams": 1000, "tons": 0.001},
	"time":   {"seconds": 1, "minutes": 1.0 / 60, "hours": 1.0 / 3600, "days": 1.0 / 86400, "weeks": 1.0 / 604800},
}

var unitCategories = []string{"length", "weight", "temperature", "time"}

var unitOrder = map[string][]string{
	"length":      {"meters", "feet", "inches", "kilometers", "miles"},
	"weight":      {"kilograms", "pounds", "ounces", "grams", "tons"},
	"temperature": {"celsius", "fahrenheit", "kelvin"},
	"time":        {"seconds", "minutes", "hours", "days", "weeks"},
}

// Convert converts value between two units of the same category.
func Convert(category, from, to string, value float64) (float64, error) {
	if category == "temperature" {
		c, err := toCelsius(from, value)
		if err != nil {
			return 0, err
		}
		return fromCelsius(to, c)
	}
	factors, ok := unitFactors[category]
	if !ok {
		return 0, errs.NewValidationError("unknown unit category: " + category)
	}
	f, okFrom := factors[from]
	t, okTo := factors[to]
	if !okFrom || !okTo {
		return 0, errs.NewValidationError(fmt.Sprintf("cannot convert %q to %q as %s", from, to, category))
	}
	return value / f * t, nil
}

func toCelsius(unit string, v float64) (float64, error) {
	switch unit {
	case "celsius":
		return v, nil
	case "fahrenheit":
		return (v - 32) * 5 / 9, nil
	case "kelvin":
		return v - 273.15, nil
	}
	return 0, errs.NewValidationError("unknown temperature unit: " + unit)
}

func fromCelsius(unit string, c float64) (float64, error) {
	switch unit {
	case "celsius":
		return c, nil
	case "fahrenheit":
		return c*9/5 + 32, nil
	case "kelvin":
		return c + 273.15, nil
	}
	return 0, errs.NewValidationError("unknown temperature unit: " + unit)
}

type unitConverter struct{}

func NewUnitConverter() Plugin { return unitConverter{} }

func (unitConverter) Key() string   { return "unitConverter" }
func (unitConverter) Title() string { return "Unit Converter" }

func (unitConverter) DefaultConfig() models.WidgetConfig {
	return models.WidgetConfig{
		"defaultCategory": "length",
		"defaultFromUnit": "meters",
		"defaultToUnit":   "feet",
		"showHistory":     true,
		"maxHistoryItems": 5.0,
	}
}

func (u unitConverter) Render(p Props) View {
	category, from, to := u.units(p.Config)
	v := View{
		Title: "Unit Converter",
		Data:  map[string]any{"category": category, "from": from, "to": to},
	}
	if out, err := Convert(category, from, to, 1); err == nil {
		v.Lines = []string{"1 " + from + " = " + strconv.FormatFloat(out, 'g', 6, 64) + " " + to}
	}

	if boolean(p.Config, "showHistory", true) {
		history, _ := p.Config["history"].([]any)
		limit := int(number(p.Config, "maxHistoryItems", 5))
		if len(history) > limit && limit >= 0 {
			history = history[len(history)-limit:]
		}
		for _, h := range history {
			if entry, ok := h.(string); ok {
				v.Lines = append(v.Lines, entry)
			}
		}
	}
	return v
}

func (u unitConverter) Options(p Props) []Option {
	category, from, to := u.units(p.Config)
	return []Option{
		{Key: "defaultCategory", Label: "Category", Kind: OptionSelect, Choices: unitCategories, Value: category},
		{Key: "defaultFromUnit", Label: "From", Kind: OptionSelect, Choices: unitOrder[category], Value: from},
		{Key: "defaultToUnit", Label: "To", Kind: OptionSelect, Choices: unitOrder[category], Value: to},
		{Key: "showHistory", Label: "Show history", Kind: OptionBool, Value: boolean(p.Config, "showHistory", true)},
		{Key: "maxHistoryItems", Label: "History size", Kind: OptionNumber, Value: number(p.Config, "maxHistoryItems", 5)},
	}
}

// units falls back to the first two units of the category when the
// configured ones do not belong to it, like a category switch does.
func (unitConverter) units(cfg models.WidgetConfig) (category, from, to string) {
	category = str(cfg, "defaultCategory", "length")
	units, ok := unitOrder[category]
	if !ok {
		category, units = "length", unitOrder["length"]
	}
	from, to = str(cfg, "defaultFromUnit", ""), str(cfg, "defaultToUnit", "")
	if !slices.Contains(units, from) {
		from = units[0]
	}
	if !slices.Contains(units, to) {
		to = units[1]
	}
	return category, from, to
}
