package domain

import "time"

// DayBounds возвращает полуинтервал [начало дня, начало следующего дня) в локации t.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// WeekRange возвращает неделю, содержащую now: с понедельника 00:00 до понедельника
// следующей недели (правая граница не включается). Считается в локации now.
func WeekRange(now time.Time) (time.Time, time.Time) {
	dayStart, _ := DayBounds(now)
	// time.Weekday начинается с воскресенья, а неделя с понедельника.
	offset := (int(now.Weekday()) + 6) % 7
	start := dayStart.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7)
}
