package core

import (
	"reflect"
	"sync"
)

type EventContext struct {
	Data struct {
		U64 [2]uint64
		F64 [2]float64

		U32 [4]uint32

		C [4]string
	}
}

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down after the current frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// The batch table was rebuilt and every batch is empty.
	/* Context usage:
	 * u32 batch_count = data.U32[0];
	 * u32 instance_capacity = data.U32[1];
	 * u64 frame = data.U64[0];
	 */
	EVENT_CODE_SCENE_REBUILT SystemEventCode = 0x02

	// A mutation was dropped because its batch is full.
	/* Context usage:
	 * string shape = data.C[0];
	 * u64 frame = data.U64[0];
	 */
	EVENT_CODE_BATCH_FULL SystemEventCode = 0x03

	// A model file under the assets directory changed.
	/* Context usage:
	 * string path = data.C[0];
	 */
	EVENT_CODE_ASSET_CHANGED SystemEventCode = 0x04

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// This should be more than enough codes...
const MAX_MESSAGE_CODES = 16384

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// State structure.
type eventSystemState struct {
	mu sync.RWMutex
	// Lookup table for event codes.
	registered map[SystemEventCode][]registeredEvent
}

var eventState = &eventSystemState{
	registered: make(map[SystemEventCode][]registeredEvent),
}

// Should return true if handled.
type FnOnEvent func(code SystemEventCode, sender interface{}, listenerInst interface{}, data EventContext) bool

func sameCallback(a, b FnOnEvent) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

func validCode(code SystemEventCode) bool {
	return code >= 0 && code < MAX_MESSAGE_CODES
}

/**
 * Register to listen for when events are sent with the provided code. Events with duplicate
 * listener/callback combos will not be registered again and will cause this to return FALSE.
 * @param code The event code to listen for.
 * @param listener A listener instance. Can be nil.
 * @param onEvent The callback invoked when the event code is fired.
 * @returns TRUE if the event is successfully registered; otherwise false.
 */
func EventRegister(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if !validCode(code) || onEvent == nil {
		return false
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()

	for _, e := range eventState.registered[code] {
		if e.listener == listener && sameCallback(e.callback, onEvent) {
			LogWarn("listener already registered for event code %d", code)
			return false
		}
	}
	eventState.registered[code] = append(eventState.registered[code], registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

/**
 * Unregister from listening for when events are sent with the provided code. If no matching
 * registration is found, this function returns FALSE.
 */
func EventUnregister(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	eventState.mu.Lock()
	defer eventState.mu.Unlock()

	events := eventState.registered[code]
	for i, e := range events {
		if e.listener == listener && sameCallback(e.callback, onEvent) {
			eventState.registered[code] = append(events[:i:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// EventUnregisterListener drops every registration of listener.
func EventUnregisterListener(listener interface{}) {
	eventState.mu.Lock()
	defer eventState.mu.Unlock()

	for code, events := range eventState.registered {
		kept := events[:0:0]
		for _, e := range events {
			if e.listener != listener {
				kept = append(kept, e)
			}
		}
		eventState.registered[code] = kept
	}
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * TRUE, the event is considered handled and is not passed on to any more listeners.
 * Callbacks run on the firing goroutine and may register or fire events themselves.
 * @returns TRUE if handled, otherwise FALSE.
 */
func EventFire(code SystemEventCode, sender interface{}, context EventContext) bool {
	eventState.mu.RLock()
	events := append([]registeredEvent(nil), eventState.registered[code]...)
	eventState.mu.RUnlock()

	for _, e := range events {
		if e.callback(code, sender, e.listener, context) {
			// Message has been handled, do not send to other listeners.
			return true
		}
	}
	return false
}
