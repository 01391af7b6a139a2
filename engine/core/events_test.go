package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const testEventCode SystemEventCode = MAX_EVENT_CODE + 1

func TestEventFireStopsWhenHandled(t *testing.T) {
	var calls []string
	first, second := "first", "second"
	record := func(handled bool) FnOnEvent {
		return func(code SystemEventCode, sender, listenerInst interface{}, data EventContext) bool {
			calls = append(calls, *listenerInst.(*string)+":"+data.Data.C[0])
			return handled
		}
	}
	t.Cleanup(func() {
		EventUnregisterListener(&first)
		EventUnregisterListener(&second)
	})

	assert.True(t, EventRegister(testEventCode, &first, record(false)))
	assert.True(t, EventRegister(testEventCode, &second, record(true)))

	context := EventContext{}
	context.Data.C[0] = "cube"
	assert.True(t, EventFire(testEventCode, nil, context))
	assert.Equal(t, []string{"first:cube", "second:cube"}, calls)

	EventUnregisterListener(&second)
	calls = nil
	assert.False(t, EventFire(testEventCode, nil, context))
	assert.Equal(t, []string{"first:cube"}, calls)
}

func TestEventRegisterRejectsDuplicates(t *testing.T) {
	listener := new(int)
	onEvent := func(code SystemEventCode, sender, listenerInst interface{}, data EventContext) bool {
		return true
	}

	assert.True(t, EventRegister(testEventCode+1, listener, onEvent))
	assert.False(t, EventRegister(testEventCode+1, listener, onEvent))
	assert.False(t, EventRegister(MAX_MESSAGE_CODES, listener, onEvent))
	assert.False(t, EventRegister(testEventCode+1, listener, nil))

	assert.True(t, EventUnregister(testEventCode+1, listener, onEvent))
	assert.False(t, EventUnregister(testEventCode+1, listener, onEvent))
	assert.False(t, EventFire(testEventCode+1, nil, EventContext{}))
}
