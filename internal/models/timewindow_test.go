package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClockTime(t *testing.T) {
	ct, err := ParseClockTime("08:30")
	require.NoError(t, err)
	assert.Equal(t, ClockTime(510), ct)
	assert.Equal(t, "08:30", ct.String())

	_, err = ParseClockTime("24:00")
	assert.Error(t, err)
	_, err = ParseClockTime("12:60")
	assert.Error(t, err)
	_, err = ParseClockTime("noon")
	assert.Error(t, err)
}

func TestClockTimeJSONRoundTrip(t *testing.T) {
	raw, err := json.Marshal(ClockTime(9 * 60))
	require.NoError(t, err)
	assert.Equal(t, `"09:00"`, string(raw))

	var ct ClockTime
	require.NoError(t, json.Unmarshal([]byte(`"16:45"`), &ct))
	assert.Equal(t, ClockTime(16*60+45), ct)

	assert.Error(t, json.Unmarshal([]byte(`"25:00"`), &ct))
}

func TestDayOfWeek(t *testing.T) {
	assert.True(t, Monday.Valid())
	assert.True(t, Sunday.Valid())
	assert.False(t, DayOfWeek("FUNDAY").Valid())

	assert.Equal(t, 0, Monday.Index())
	assert.Equal(t, 6, Sunday.Index())
	assert.Equal(t, -1, DayOfWeek("").Index())

	assert.False(t, Friday.Weekend())
	assert.True(t, Saturday.Weekend())
	assert.True(t, Sunday.Weekend())
}

func TestTimeWindowOverlaps(t *testing.T) {
	nine := ClockTime(9 * 60)
	ten := ClockTime(10 * 60)
	eleven := ClockTime(11 * 60)
	half := ClockTime(9*60 + 30)

	a := TimeWindow{Day: Monday, Start: nine, End: ten}

	// Partial overlap, both directions.
	b := TimeWindow{Day: Monday, Start: half, End: eleven}
	assert.True(t, a.Overlaps(b))
	assert.True(t, b.Overlaps(a))

	// Containment.
	inner := TimeWindow{Day: Monday, Start: ClockTime(9*60 + 15), End: ClockTime(9*60 + 45)}
	assert.True(t, a.Overlaps(inner))
	assert.True(t, inner.Overlaps(a))

	// Identical windows overlap.
	assert.True(t, a.Overlaps(a))

	// Back-to-back windows do not overlap: intervals are half-open.
	adjacent := TimeWindow{Day: Monday, Start: ten, End: eleven}
	assert.False(t, a.Overlaps(adjacent))
	assert.False(t, adjacent.Overlaps(a))

	// Same clock window on a different day never overlaps.
	otherDay := TimeWindow{Day: Tuesday, Start: nine, End: ten}
	assert.False(t, a.Overlaps(otherDay))
	assert.False(t, otherDay.Overlaps(a))
}

func TestProjectKeepsDaysDisjoint(t *testing.T) {
	// The last minute of one day stays strictly before the first minute of
	// the next.
	endOfMonday := Project(Monday, ClockTime(23*60+59))
	startOfTuesday := Project(Tuesday, ClockTime(0))
	assert.True(t, endOfMonday.Before(startOfTuesday))
}
