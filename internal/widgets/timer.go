package widgets

import (
	"fmt"

	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

type pomodoroTimer struct{}

func NewPomodoroTimer() Plugin { return pomodoroTimer{} }

func (pomodoroTimer) Key() string   { return "pomodoroTimer" }
func (pomodoroTimer) Title() string { return "Pomodoro Timer" }

func (pomodoroTimer) DefaultConfig() models.WidgetConfig {
	return models.WidgetConfig{
		"workTime":           25.0,
		"breakTime":          5.0,
		"time":               25.0 * 60,
		"isActive":           false,
		"isWork":             true,
		"autoStartBreaks":    false,
		"autoStartPomodoros": false,
		"showProgressBar":    true,
	}
}

func (pomodoroTimer) Render(p Props) View {
	isWork := boolean(p.Config, "isWork", true)
	phase, minutes := "Break", number(p.Config, "breakTime", 5)
	if isWork {
		phase, minutes = "Work", number(p.Config, "workTime", 25)
	}
	remaining := max(int(number(p.Config, "time", minutes*60)), 0)

	state := "paused"
	if boolean(p.Config, "isActive", false) {
		state = "running"
	}

	v := View{
		Title: "Pomodoro " + phase,
		Lines: []string{fmt.Sprintf("%02d:%02d %s", remaining/60, remaining%60, state)},
		Data:  map[string]any{"remaining": remaining, "phase": phase, "active": state == "running"},
	}
	if total := minutes * 60; boolean(p.Config, "showProgressBar", true) && total > 0 {
		progress := 1 - float64(remaining)/total
		progress = min(max(progress, 0), 1)
		v.Data["progress"] = progress
		v.Lines = append(v.Lines, progressBar(progress, 20))
	}
	return v
}

func (pomodoroTimer) Options(p Props) []Option {
	return []Option{
		{Key: "workTime", Label: "Work minutes", Kind: OptionNumber, Value: number(p.Config, "workTime", 25)},
		{Key: "breakTime", Label: "Break minutes", Kind: OptionNumber, Value: number(p.Config, "breakTime", 5)},
		{Key: "autoStartBreaks", Label: "Auto-start breaks", Kind: OptionBool, Value: boolean(p.Config, "autoStartBreaks", false)},
		{Key: "autoStartPomodoros", Label: "Auto-start pomodoros", Kind: OptionBool, Value: boolean(p.Config, "autoStartPomodoros", false)},
		{Key: "showProgressBar", Label: "Show progress bar", Kind: OptionBool, Value: boolean(p.Config, "showProgressBar", true)},
	}
}

func progressBar(progress float64, width int) string {
	filled := int(progress * float64(width))
	bar := make([]rune, width)
	for i := range bar {
		if i < filled {
			bar[i] = '#'
		} else {
			bar[i] = '-'
		}
	}
	return "[" + string(bar) + "]"
}
