package booking

import (
	"strconv"
	"strings"
)

// TimeSlots is the fixed catalog of bookable times.
var TimeSlots = []string{
	"11:00:00", "11:30:00",
	"12:00:00", "12:30:00",
	"13:00:00", "13:30:00",
	"14:00:00", "14:30:00",
	"18:00:00", "18:30:00",
	"19:00:00", "19:30:00",
	"20:00:00", "20:30:00",
	"21:00:00",
}

var PartySizes = []int{1, 2, 3, 4, 5, 6, 7, 8}

// dinnerFrom is the first hour that counts as dinner.
const dinnerFrom = 17

type SlotGroup struct {
	Label string
	Slots []string
}

// GroupSlots buckets slots into Lunch and Dinner, keeping input order.
// Empty groups are dropped.
func GroupSlots(slots []string) []SlotGroup {
	lunch := SlotGroup{Label: "Lunch"}
	dinner := SlotGroup{Label: "Dinner"}
	for _, s := range slots {
		h, err := strconv.Atoi(strings.SplitN(s, ":", 2)[0])
		if err != nil {
			continue
		}
		if h < dinnerFrom {
			lunch.Slots = append(lunch.Slots, s)
		} else {
			dinner.Slots = append(dinner.Slots, s)
		}
	}
	var out []SlotGroup
	for _, g := range []SlotGroup{lunch, dinner} {
		if len(g.Slots) > 0 {
			out = append(out, g)
		}
	}
	return out
}

// NormalizeTime turns "19:00" into "19:00:00"; anything else is returned
// trimmed.
func NormalizeTime(t string) string {
	t = strings.TrimSpace(t)
	if len(t) == 5 && strings.Count(t, ":") == 1 {
		t += ":00"
	}
	return t
}

// FormatTime renders "19:30:00" as "7:30 PM".
func FormatTime(t string) string {
	parts := strings.Split(NormalizeTime(t), ":")
	if len(parts) < 2 {
		return t
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return t
	}
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return strconv.Itoa(h12) + ":" + parts[1] + " " + suffix
}

func containsSlot(slots []string, t string) bool {
	for _, s := range slots {
		if s == t {
			return true
		}
	}
	return false
}
