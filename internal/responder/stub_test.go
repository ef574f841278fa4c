package responder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comigor/healthchat/internal/config"
	"github.com/comigor/healthchat/internal/conversation"
)

func newStubStore(delay time.Duration) (*conversation.Store, *Stub) {
	stub := NewStub(delay, "")
	return conversation.NewStore(conversation.WithResponder(stub)), stub
}

func TestStub_HelloScenario(t *testing.T) {
	store, stub := newStubStore(DefaultDelay)

	store.Submit("Hello")

	turns := store.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, "Hello", turns[0].Text)
	assert.Equal(t, conversation.SenderUser, turns[0].Sender)
	assert.Equal(t, "", store.Draft())
	assert.Equal(t, 1, stub.Pending())

	stub.Wait()

	turns = store.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "Hello", turns[0].Text)
	assert.Equal(t, conversation.SenderUser, turns[0].Sender)
	assert.Equal(t, "This is a placeholder response. The orchestrator will be connected later.", turns[1].Text)
	assert.Equal(t, conversation.SenderAI, turns[1].Sender)
	assert.Zero(t, stub.Pending())
}

func TestStub_ReplyArrivesOnlyAfterDelay(t *testing.T) {
	store, stub := newStubStore(200 * time.Millisecond)

	start := time.Now()
	store.Submit("ping")
	assert.Less(t, time.Since(start), 100*time.Millisecond, "submit must not wait for the reply")
	assert.Equal(t, 1, store.Len())

	stub.Wait()
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	assert.Equal(t, 2, store.Len())
}

func TestStub_BlankSubmitSchedulesNothing(t *testing.T) {
	store, stub := newStubStore(10 * time.Millisecond)

	store.Submit("   ")

	assert.Zero(t, stub.Pending())
	stub.Wait()
	assert.Empty(t, store.Turns())
}

func TestStub_GrowthProperty(t *testing.T) {
	inputs := []string{"a", " b", "c ", "multi word input", "ünïcödé", "\tx\n", "?"}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			store, stub := newStubStore(5 * time.Millisecond)
			before := store.Len()

			store.Submit(in)
			assert.Equal(t, before+1, store.Len())
			assert.Equal(t, "", store.Draft())

			stub.Wait()
			assert.Equal(t, before+2, store.Len())
		})
	}
}

func TestStub_RapidSubmits(t *testing.T) {
	store, stub := newStubStore(50 * time.Millisecond)

	store.Submit("A")
	store.Submit("B")

	turns := store.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "A", turns[0].Text)
	assert.Equal(t, "B", turns[1].Text)
	assert.Equal(t, 2, stub.Pending())

	stub.Wait()

	turns = store.Turns()
	require.Len(t, turns, 4)
	assert.Equal(t, conversation.SenderAI, turns[2].Sender)
	assert.Equal(t, conversation.SenderAI, turns[3].Sender)
}

func TestStub_SequentialSubmitsInterleave(t *testing.T) {
	store, stub := newStubStore(5 * time.Millisecond)

	for _, text := range []string{"one", "two", "three"} {
		store.Submit(text)
		stub.Wait()
	}

	turns := store.Turns()
	require.Len(t, turns, 6)
	for k := 0; k < 3; k++ {
		assert.Equal(t, conversation.SenderUser, turns[2*k].Sender, "turn %d", 2*k)
		assert.Equal(t, conversation.SenderAI, turns[2*k+1].Sender, "turn %d", 2*k+1)
	}
}

func TestStub_CustomText(t *testing.T) {
	stub := NewStub(time.Millisecond, "hold on")
	store := conversation.NewStore(conversation.WithResponder(stub))

	store.Submit("q")
	require.NoError(t, stub.Close())

	assert.Equal(t, "hold on", store.Turns()[1].Text)
}

func TestNew(t *testing.T) {
	r, err := New(config.ResponderConfig{Mode: config.ModeStub, Delay: time.Millisecond})
	require.NoError(t, err)
	assert.IsType(t, &Stub{}, r)

	r, err = New(config.ResponderConfig{Mode: config.ModePipeline, Delay: time.Millisecond})
	require.NoError(t, err)
	assert.IsType(t, &Pipeline{}, r)
	require.NoError(t, r.Close())

	_, err = New(config.ResponderConfig{Mode: "bogus"})
	assert.Error(t, err)
}
