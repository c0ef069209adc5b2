package meshbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"meshctl/internal/envelope"
)

func TestAwait_MatchesExpectedResponse(t *testing.T) {
	bus := NewBus(4)

	sendCalled := false
	send := func() error {
		sendCalled = true
		go func() {
			// Simulate the mesh replying on the bus shortly after the request
			// goes out, once a subscriber is guaranteed to already be listening.
			time.Sleep(10 * time.Millisecond)
			env := envelope.NewMeshSettings(envelope.MeshSettings{})
			data, _ := envelope.Encode(env)
			bus.Publish(data)
		}()
		return nil
	}

	predicate := func(e envelope.Envelope) (envelope.MeshSettings, bool) {
		if e.Kind == envelope.KindMeshSettings {
			return *e.MeshSettings, true
		}
		return envelope.MeshSettings{}, false
	}

	got, err := Await(context.Background(), bus, send, time.Second, predicate)
	require.NoError(t, err)
	require.True(t, sendCalled)
	require.Equal(t, envelope.MeshSettings{}, got)
}

func TestAwait_IgnoresNonMatchingEnvelopes(t *testing.T) {
	bus := NewBus(4)

	send := func() error {
		go func() {
			time.Sleep(5 * time.Millisecond)
			noise, _ := envelope.Encode(envelope.NewStartLiveTelemetry())
			bus.Publish(noise)

			time.Sleep(5 * time.Millisecond)
			match, _ := envelope.Encode(envelope.NewMeshSettings(envelope.MeshSettings{}))
			bus.Publish(match)
		}()
		return nil
	}

	predicate := func(e envelope.Envelope) (envelope.MeshSettings, bool) {
		if e.Kind == envelope.KindMeshSettings {
			return *e.MeshSettings, true
		}
		return envelope.MeshSettings{}, false
	}

	_, err := Await(context.Background(), bus, send, time.Second, predicate)
	require.NoError(t, err)
}

func TestAwait_TimesOutWithExactErrorMessage(t *testing.T) {
	bus := NewBus(4)
	send := func() error { return nil }

	predicate := func(e envelope.Envelope) (envelope.MeshSettings, bool) {
		return envelope.MeshSettings{}, false
	}

	_, err := Await(context.Background(), bus, send, 20*time.Millisecond, predicate)
	require.EqualError(t, err, "Timed out waiting for mesh response after 0 seconds")
}

func TestAwait_MalformedPayloadAbortsWait(t *testing.T) {
	bus := NewBus(4)

	send := func() error {
		go func() {
			time.Sleep(5 * time.Millisecond)
			bus.Publish([]byte("not json"))
		}()
		return nil
	}

	predicate := func(e envelope.Envelope) (envelope.MeshSettings, bool) {
		return envelope.MeshSettings{}, false
	}

	_, err := Await(context.Background(), bus, send, time.Second, predicate)
	require.Error(t, err)
}

func TestAwait_SendErrorPropagates(t *testing.T) {
	bus := NewBus(4)
	boom := errFixture("boom")
	send := func() error { return boom }

	predicate := func(e envelope.Envelope) (envelope.MeshSettings, bool) {
		return envelope.MeshSettings{}, false
	}

	_, err := Await(context.Background(), bus, send, time.Second, predicate)
	require.Error(t, err)
}

type errFixture string

func (e errFixture) Error() string { return string(e) }
