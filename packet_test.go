package quantas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelTickMaturesInOrder(t *testing.T) {
	ch := newChannel(1, 2)
	ch.enqueue(&Packet{MsgID: "a", DelayRemaining: 2, OriginalDelay: 2})
	ch.enqueue(&Packet{MsgID: "b", DelayRemaining: 1, OriginalDelay: 1})

	ch.tick()
	matured := ch.drain()
	require.Len(t, matured, 1)
	assert.Equal(t, "b", matured[0].MsgID)

	ch.tick()
	matured = ch.drain()
	require.Len(t, matured, 1)
	assert.Equal(t, "a", matured[0].MsgID)
}

func TestChannelDrainEmptyReturnsNil(t *testing.T) {
	ch := newChannel(1, 2)
	assert.Nil(t, ch.drain())
}

func TestChannelTickDecrementsWithoutMaturing(t *testing.T) {
	ch := newChannel(1, 2)
	ch.enqueue(&Packet{MsgID: "a", DelayRemaining: 3, OriginalDelay: 3})
	ch.tick()
	assert.Nil(t, ch.drain())
	require.Len(t, ch.inflight, 1)
	assert.Equal(t, 2, ch.inflight[0].DelayRemaining)
}
