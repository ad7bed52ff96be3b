package widgets

import "github.com/GregMSThompson/dashboard-backend/internal/models"

// Readers for the loosely typed config record. JSON numbers decode as
// float64; ints appear only for configs built in Go.

func str(cfg models.WidgetConfig, key, def string) string {
	if v, ok := cfg[key].(string); ok {
		return v
	}
	return def
}

func boolean(cfg models.WidgetConfig, key string, def bool) bool {
	if v, ok := cfg[key].(bool); ok {
		return v
	}
	return def
}

func number(cfg models.WidgetConfig, key string, def float64) float64 {
	switch v := cfg[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}
