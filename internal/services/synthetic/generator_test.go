package synthetic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/models"
)

func fixedClock() time.Time { return time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC) }

func TestGenerateDeterministic(t *testing.T) {
	g := New(WithSeed(42), WithClock(fixedClock))

	a := g.Generate(90)
	b := g.Generate(90)
	require.Equal(t, a.Points, b.Points)

	other := New(WithSeed(42), WithClock(fixedClock)).Generate(90)
	assert.Equal(t, a.Points, other.Points)
}

func TestGenerateShape(t *testing.T) {
	g := New(WithClock(fixedClock))
	s := g.Generate(90)

	require.Equal(t, 90, s.Len())
	assert.Equal(t, models.SourceSynthetic, s.Source)
	require.NoError(t, s.Validate())

	last := s.Last().Timestamp
	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), last)
	assert.Equal(t, time.Date(2024, 2, 11, 0, 0, 0, 0, time.UTC), s.Points[0].Timestamp)
	for i := 1; i < s.Len(); i++ {
		assert.Equal(t, 24*time.Hour, s.Points[i].Timestamp.Sub(s.Points[i-1].Timestamp))
	}
}

func TestGenerateDefaultsDays(t *testing.T) {
	s := New(WithClock(fixedClock)).Generate(0)
	assert.Equal(t, DefaultDays, s.Len())
}

func TestGenerateSeedChangesSeries(t *testing.T) {
	a := New(WithSeed(1), WithClock(fixedClock)).Generate(30)
	b := New(WithSeed(2), WithClock(fixedClock)).Generate(30)
	assert.NotEqual(t, a.Closes(), b.Closes())
}
