package metadata

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-run/lattice/internal/bus"
	"github.com/lattice-run/lattice/internal/claims"
	"github.com/lattice-run/lattice/internal/ctlproto"
)

func newTestServer(t *testing.T) (*Server, bus.Bus, Store) {
	t.Helper()
	b := bus.NewInProc()
	store := NewMemStore()
	cache := claims.NewCache()
	srv := NewServer("default", "", store, cache, b, nil)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { b.Close(); store.Close() })
	return srv, b, store
}

func TestPutLinkThenGetLinks(t *testing.T) {
	_, b, _ := newTestServer(t)

	events := make(chan bus.Message, 1)
	sub, err := b.Subscribe("wasmbus.evt.default.link_definition_set", func(_ context.Context, msg bus.Message) {
		events <- msg
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	link := ctlproto.LinkDefinition{
		SourceID: "MCOMPONENT1", Target: "PPROVIDER1", LinkName: "default",
		WitNamespace: "wasi", WitPackage: "keyvalue",
	}
	data, _ := json.Marshal(link)
	replyMsg, err := b.Request(context.Background(), "wasmbus.ctl.v1.default.link.put", data, time.Second)
	require.NoError(t, err)

	var putResp ctlproto.CtlResponse[struct{}]
	require.NoError(t, json.Unmarshal(replyMsg.Data, &putResp))
	assert.True(t, putResp.Success)

	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for link_definition_set event")
	}

	getReply, err := b.Request(context.Background(), "wasmbus.ctl.v1.default.link.get", nil, time.Second)
	require.NoError(t, err)
	var getResp ctlproto.CtlResponse[[]ctlproto.LinkDefinition]
	require.NoError(t, json.Unmarshal(getReply.Data, &getResp))
	require.True(t, getResp.Success)
	require.Len(t, *getResp.Response, 1)
	assert.Equal(t, "MCOMPONENT1", (*getResp.Response)[0].SourceID)
}

func TestPutLinkRejectsWhitespaceOnlySourceID(t *testing.T) {
	_, b, _ := newTestServer(t)

	link := ctlproto.LinkDefinition{
		SourceID: "   ", Target: "PPROVIDER1", LinkName: "default",
		WitNamespace: "wasi", WitPackage: "keyvalue",
	}
	data, _ := json.Marshal(link)
	replyMsg, err := b.Request(context.Background(), "wasmbus.ctl.v1.default.link.put", data, time.Second)
	require.NoError(t, err)

	var resp ctlproto.CtlResponse[struct{}]
	require.NoError(t, json.Unmarshal(replyMsg.Data, &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "actor ref")
}

func TestDeleteLinkRemovesIt(t *testing.T) {
	_, b, _ := newTestServer(t)

	link := ctlproto.LinkDefinition{SourceID: "M1", Target: "P1", LinkName: "default", WitNamespace: "wasi", WitPackage: "keyvalue"}
	data, _ := json.Marshal(link)
	_, err := b.Request(context.Background(), "wasmbus.ctl.v1.default.link.put", data, time.Second)
	require.NoError(t, err)

	delReq := ctlproto.DeleteLinkRequest{SourceID: "M1", LinkName: "default", WitNamespace: "wasi", WitPackage: "keyvalue"}
	delData, _ := json.Marshal(delReq)
	_, err = b.Request(context.Background(), "wasmbus.ctl.v1.default.link.del", delData, time.Second)
	require.NoError(t, err)

	getReply, err := b.Request(context.Background(), "wasmbus.ctl.v1.default.link.get", nil, time.Second)
	require.NoError(t, err)
	var getResp ctlproto.CtlResponse[[]ctlproto.LinkDefinition]
	require.NoError(t, json.Unmarshal(getReply.Data, &getResp))
	assert.Empty(t, *getResp.Response)
}

func TestPutConfigThenGetConfig(t *testing.T) {
	_, b, _ := newTestServer(t)

	req := ctlproto.PutConfigRequest{Name: "db-creds", Values: map[string]string{"user": "admin"}}
	data, _ := json.Marshal(req)
	_, err := b.Request(context.Background(), "wasmbus.ctl.v1.default.config.db-creds.put", data, time.Second)
	require.NoError(t, err)

	getReply, err := b.Request(context.Background(), "wasmbus.ctl.v1.default.config.db-creds.get", nil, time.Second)
	require.NoError(t, err)
	var getResp ctlproto.CtlResponse[map[string]string]
	require.NoError(t, json.Unmarshal(getReply.Data, &getResp))
	require.True(t, getResp.Success)
	assert.Equal(t, "admin", (*getResp.Response)["user"])
}

func TestGetConfigMissingFails(t *testing.T) {
	_, b, _ := newTestServer(t)
	getReply, err := b.Request(context.Background(), "wasmbus.ctl.v1.default.config.nope.get", nil, time.Second)
	require.NoError(t, err)
	var getResp ctlproto.CtlResponse[map[string]string]
	require.NoError(t, json.Unmarshal(getReply.Data, &getResp))
	assert.False(t, getResp.Success)
}

func TestDeleteConfigRemovesIt(t *testing.T) {
	_, b, _ := newTestServer(t)
	req := ctlproto.PutConfigRequest{Name: "tmp", Values: map[string]string{"a": "b"}}
	data, _ := json.Marshal(req)
	_, err := b.Request(context.Background(), "wasmbus.ctl.v1.default.config.tmp.put", data, time.Second)
	require.NoError(t, err)

	_, err = b.Request(context.Background(), "wasmbus.ctl.v1.default.config.tmp.del", nil, time.Second)
	require.NoError(t, err)

	getReply, err := b.Request(context.Background(), "wasmbus.ctl.v1.default.config.tmp.get", nil, time.Second)
	require.NoError(t, err)
	var getResp ctlproto.CtlResponse[map[string]string]
	require.NoError(t, json.Unmarshal(getReply.Data, &getResp))
	assert.False(t, getResp.Success)
}

func TestPutRegistriesWritesEachCredential(t *testing.T) {
	_, b, store := newTestServer(t)
	creds := ctlproto.PutRegistriesRequest{
		"ghcr.io": {Username: "u", Password: "p", Type: "basic"},
	}
	data, _ := json.Marshal(creds)
	require.NoError(t, b.Publish(context.Background(), "wasmbus.ctl.v1.default.registry.put", data, nil))

	require.Eventually(t, func() bool {
		_, ok, _ := store.Get(context.Background(), BucketRegistry, "ghcr.io")
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestGetClaimsReturnsCached(t *testing.T) {
	cache := claims.NewCache()
	cache.Put(&claims.Claims{Sub: "MCOMPONENT1", Iss: "AACCOUNT1"})

	b := bus.NewInProc()
	defer b.Close()
	store := NewMemStore()
	defer store.Close()
	srv := NewServer("default", "", store, cache, b, nil)
	require.NoError(t, srv.Start())

	reply, err := b.Request(context.Background(), "wasmbus.ctl.v1.default.claims.get", nil, time.Second)
	require.NoError(t, err)
	var resp ctlproto.CtlResponse[[]json.RawMessage]
	require.NoError(t, json.Unmarshal(reply.Data, &resp))
	require.True(t, resp.Success)
	require.Len(t, *resp.Response, 1)
}
