package servicecontrol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrackerClassify(t *testing.T) {
	clk := newClock()
	tr := NewTracker(30*time.Second, clk.Now)

	assert.Equal(t, StatusStopped, tr.Classify())

	tr.Record(Heartbeat{WebsocketActive: true, MonitoredAssets: 4})
	assert.Equal(t, StatusRunning, tr.Classify())

	tr.Record(Heartbeat{WebsocketActive: false})
	assert.Equal(t, StatusIdle, tr.Classify())

	tr.Record(Heartbeat{Status: "error"})
	assert.Equal(t, "error", tr.Classify())

	clk.Advance(30 * time.Second)
	assert.Equal(t, "error", tr.Classify())

	clk.Advance(time.Millisecond)
	assert.Equal(t, StatusStopped, tr.Classify())
}

func TestTrackerRecordStampsReceipt(t *testing.T) {
	clk := newClock()
	tr := NewTracker(0, clk.Now)

	_, ok := tr.Last()
	assert.False(t, ok)

	tr.Record(Heartbeat{Status: "running", ReceivedAt: time.Unix(0, 0)})
	hb, ok := tr.Last()
	assert.True(t, ok)
	assert.Equal(t, clk.Now(), hb.ReceivedAt)

	clk.Advance(DefaultHeartbeatTTL + time.Second)
	assert.Equal(t, StatusStopped, tr.Classify())
}
