package ctlproto

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-run/lattice/internal/bus"
	"github.com/lattice-run/lattice/internal/subject"
)

func TestCtlResponseJSONShape(t *testing.T) {
	ok := Ok(InventorySnapshot{HostID: "N1"})
	data, err := json.Marshal(ok)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"message":"","response":{"host_id":"N1","components":null,"providers":null}}`, string(data))

	fail := Fail[struct{}]("business failure")
	data, err = json.Marshal(fail)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"message":"business failure"}`, string(data))
}

// fakeHost wires a dispatcher to answer get_hosts and scale_component the
// way a real host would, enough to exercise the client end to end.
func newFakeHost(t *testing.T, b bus.Bus, topicPrefix, lattice, hostID string) {
	t.Helper()
	d := NewDispatcher(b, nil)

	require.NoError(t, d.Handle(subject.HostsGet(topicPrefix, lattice), func(ctx context.Context, msg bus.Message) ([]byte, error) {
		return json.Marshal(HostInfo{HostID: hostID, FriendlyName: "test-host"})
	}))

	require.NoError(t, d.Handle(subject.ComponentScale(topicPrefix, lattice, hostID), func(ctx context.Context, msg bus.Message) ([]byte, error) {
		var req ScaleComponentRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return json.Marshal(Fail[struct{}](err.Error()))
		}
		if req.HostID != hostID {
			return json.Marshal(Fail[struct{}]("host id mismatch"))
		}
		return json.Marshal(OkVoid())
	}))

	t.Cleanup(d.Close)
}

func TestClientGetHostsAuction(t *testing.T) {
	b := bus.NewInProc()
	defer b.Close()
	newFakeHost(t, b, "", "default", "N1")

	c := NewClient(b, "", "default")
	c.AuctionWindow = 100 * time.Millisecond

	hosts, err := c.GetHosts(context.Background())
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, "N1", hosts[0].HostID)
}

func TestClientScaleComponentEarlyAck(t *testing.T) {
	b := bus.NewInProc()
	defer b.Close()
	newFakeHost(t, b, "", "default", "N1")

	c := NewClient(b, "", "default")
	resp, err := c.ScaleComponent(context.Background(), ScaleComponentRequest{
		HostID:       "N1",
		ImageRef:     "img://x",
		ComponentID:  "ID1",
		MaxInstances: 3,
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestClientRequestTimeoutIsTransportError(t *testing.T) {
	b := bus.NewInProc()
	defer b.Close()

	c := NewClient(b, "", "default")
	c.RequestTimeout = 30 * time.Millisecond
	_, err := c.ScaleComponent(context.Background(), ScaleComponentRequest{HostID: "ghost"})
	require.Error(t, err)
}

func TestNewCloudEvent(t *testing.T) {
	evt, err := NewCloudEvent("N1", EventComponentScaled, ComponentScaledData{ComponentID: "ID1", Count: 3}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "N1", evt.Source)
	assert.Equal(t, EventComponentScaled, evt.Type)
	assert.Equal(t, "1.0", evt.SpecVersion)

	var data ComponentScaledData
	require.NoError(t, json.Unmarshal(evt.Data, &data))
	assert.Equal(t, 3, data.Count)
}
