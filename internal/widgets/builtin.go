package widgets

import "time"

// Builtin returns a registry holding the stock widgets. now drives the clock.
func Builtin(now func() time.Time) *Registry {
	r, err := NewRegistry(
		NewClock(now),
		NewPostIt(),
		NewTodoList(),
		NewWebLink(),
		NewPomodoroTimer(),
		NewUnitConverter(),
	)
	if err != nil {
		panic(err)
	}
	return r
}
