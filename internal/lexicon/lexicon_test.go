package lexicon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCount_SubstringOncePerWord(t *testing.T) {
	assert.Equal(t, 1, Count("stress stress stressful", []string{"stress"}))
	// "hard" matches inside "hardly"
	assert.Equal(t, 1, Count("hardly", MoodNegative))
	assert.Equal(t, 0, Count("", MoodPositive))
}

func TestMoodScore(t *testing.T) {
	assert.Equal(t, 2.0, MoodScore("a great and happy day"))
	assert.Equal(t, -2.0, MoodScore("tired and stress"))
	assert.Equal(t, 0.0, MoodScore("nothing here"))
}

func TestCycleScore(t *testing.T) {
	assert.Equal(t, 0.0, CycleScore("plain text"))
	assert.Equal(t, 1.0, CycleScore("feeling recharged"))
	assert.Equal(t, -1.0, CycleScore("so frustrated"))
	assert.InDelta(t, 1.0/3.0, CycleScore("good great but tired"), 1e-12)
}

func TestListsStayDistinct(t *testing.T) {
	assert.Len(t, MoodPositive, 16)
	assert.Len(t, MoodNegative, 15)
	assert.Len(t, CyclePositive, 21)
	assert.Len(t, CycleNegative, 17)
	assert.NotContains(t, MoodPositive, "recharged")
	assert.Contains(t, CyclePositive, "recharged")
}

func TestCategoriesOrder(t *testing.T) {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = c.Name
	}
	assert.Equal(t, []string{
		"Work Performance", "Social Connection", "Rest & Recovery",
		"Health & Wellness", "Personal Growth", "Leisure & Recreation",
	}, names)
}
