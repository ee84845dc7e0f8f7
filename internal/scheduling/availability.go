package scheduling

// AvailableSlots walks the day's effective interval in slotMins steps and
// returns the start times, as "HH:MM" strings, of every step whose full
// [step, step+slotMins) window fits inside the interval and overlaps no
// non-cancelled appointment. An empty or inverted interval yields nil.
func AvailableSlots(day DaySchedule, appts []Appointment, slotMins int) []string {
	if slotMins <= 0 {
		return nil
	}
	window, ok := day.EffectiveInterval()
	if !ok || window.Start >= window.End {
		return nil
	}

	var slots []string
	for step := window.Start; step+TimeOfDay(slotMins) <= window.End; step += TimeOfDay(slotMins) {
		candidate := Interval{Start: step, End: step + TimeOfDay(slotMins)}
		if slotFree(candidate, appts) {
			slots = append(slots, step.String())
		}
	}
	return slots
}

// SlotFits reports whether [start, start+durationMins) lies inside the day's
// effective interval and overlaps no non-cancelled appointment. Minute-exact
// interval comparison, so appointments of any odd duration are caught.
func SlotFits(day DaySchedule, appts []Appointment, start TimeOfDay, durationMins int) bool {
	if durationMins <= 0 {
		return false
	}
	window, ok := day.EffectiveInterval()
	if !ok {
		return false
	}
	end := start + TimeOfDay(durationMins)
	if start < window.Start || end > window.End {
		return false
	}
	return slotFree(Interval{Start: start, End: end}, appts)
}

func slotFree(candidate Interval, appts []Appointment) bool {
	for _, a := range appts {
		if a.Status == StatusCancelled {
			continue
		}
		if overlaps(candidate, a.Window()) {
			return false
		}
	}
	return true
}

func overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}
