package event

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_AtTime(t *testing.T) {
	e := NewEvent("JUG Kids", "", "Montreal", time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC))

	start, err := e.AtTime("13:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 14, 13, 30, 0, 0, time.UTC), start)

	_, err = e.AtTime("1pm")
	assert.Error(t, err)
}

func TestEvent_ImagePathAndActivities(t *testing.T) {
	e := NewEvent("JUG Kids", "", "", time.Now())
	assert.Equal(t, "img/event/"+e.ID.String()+".png", e.ImagePath())
	assert.Empty(t, (&Event{}).ImagePath())

	a := NewActivity(e.ID, "Scratch", "", time.Now(), 10, 2)
	e.Activities = append(e.Activities, a)
	assert.True(t, e.HasActivity(a.ID))
	assert.False(t, e.HasActivity(uuid.New()))
}

func TestEvent_Validate(t *testing.T) {
	assert.Error(t, (&Event{Date: time.Now()}).Validate())
	assert.Error(t, (&Event{Title: "x"}).Validate())
	assert.NoError(t, NewEvent("x", "", "", time.Now()).Validate())
}
