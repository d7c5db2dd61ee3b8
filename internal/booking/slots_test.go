package booking

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGroupSlots(t *testing.T) {
	groups := GroupSlots(TimeSlots)
	if assert.Len(t, groups, 2) {
		assert.Equal(t, "Lunch", groups[0].Label)
		assert.Equal(t, []string{"11:00:00", "11:30:00", "12:00:00", "12:30:00", "13:00:00", "13:30:00", "14:00:00", "14:30:00"}, groups[0].Slots)
		assert.Equal(t, "Dinner", groups[1].Label)
		assert.Equal(t, "18:00:00", groups[1].Slots[0])
		assert.Len(t, groups[1].Slots, 7)
	}
}

func TestGroupSlots_DropsEmptyGroups(t *testing.T) {
	groups := GroupSlots([]string{"19:00:00", "17:00:00"})
	if assert.Len(t, groups, 1) {
		assert.Equal(t, "Dinner", groups[0].Label)
	}
	assert.Empty(t, GroupSlots(nil))
}

func TestNormalizeAndFormatTime(t *testing.T) {
	assert.Equal(t, "19:00:00", NormalizeTime("19:00"))
	assert.Equal(t, "19:00:00", NormalizeTime(" 19:00:00 "))
	assert.Equal(t, "7:30 PM", FormatTime("19:30:00"))
	assert.Equal(t, "12:00 PM", FormatTime("12:00"))
	assert.Equal(t, "12:15 AM", FormatTime("00:15:00"))
	assert.Equal(t, "11:00 AM", FormatTime("11:00:00"))
}

func TestFormatRestaurantName(t *testing.T) {
	assert.Equal(t, "The Green Room", FormatRestaurantName("TheGreenRoom"))
	assert.Equal(t, "Bistro", FormatRestaurantName("Bistro"))
	assert.Equal(t, "Chez Marie", FormatRestaurantName("Chez Marie"))
}

func TestNewRestaurant_UsesDefaults(t *testing.T) {
	r := NewRestaurant("7", "TheGreenRoom", "thegreenroom")
	assert.Equal(t, "thegreenroom", r.MicrositeName)
	assert.Equal(t, "The Green Room", r.Name)
	assert.Equal(t, DefaultRestaurantInfo.Phone, r.Phone)
	assert.Equal(t, DefaultRestaurantInfo.Hours, r.Hours)
	assert.InDelta(t, 4.5, r.Rating, 0.001)

	r = NewRestaurant("8", "Bistro", "")
	assert.Equal(t, "8", r.MicrositeName)
}

func TestNewReference(t *testing.T) {
	re := regexp.MustCompile(`^[0-9A-Z]{7}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		ref := NewReference()
		assert.Regexp(t, re, ref)
		seen[ref] = true
	}
	assert.Greater(t, len(seen), 1)
}
