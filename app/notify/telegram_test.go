package notify

import (
	"testing"
	"time"

	"stridepoints/app/storage/models"

	"github.com/stretchr/testify/assert"
)

func TestFormatActivityMessage(t *testing.T) {
	ev := Event{
		User: models.User{Firstname: "Jo", Lastname: "Doe"},
		Activity: models.Activity{
			Name:           "Morning Run",
			ActivityType:   "Run",
			Distance:       5231.5,
			MovingTime:     1800,
			StartDateLocal: time.Date(2024, 8, 20, 8, 30, 0, 0, time.UTC),
		},
	}

	msg := FormatActivityMessage(ev)
	assert.Contains(t, msg, "Jo Doe")
	assert.Contains(t, msg, "Morning Run")
	assert.Contains(t, msg, "5.23 km")
	assert.Contains(t, msg, "30 min")
}

func TestFormatActivityMessage_EscapesMarkdown(t *testing.T) {
	ev := Event{
		User:     models.User{Firstname: "Jo_Anne"},
		Activity: models.Activity{Name: "5k_tempo", ActivityType: "Run", Distance: 5000, MovingTime: 1500},
	}

	msg := FormatActivityMessage(ev)
	assert.Contains(t, msg, `Jo\_Anne`)
	assert.Contains(t, msg, `5k\_tempo`)
}
