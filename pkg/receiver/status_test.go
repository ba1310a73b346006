package receiver

import "testing"

// TestTransition tests the connection state machine.
func TestTransition(t *testing.T) {
	tests := []struct {
		from  State
		event Event
		want  State
		ok    bool
	}{
		{StateDisconnected, EventConnect, StateConnecting, true},
		{StateConnecting, EventOpened, StateConnected, true},
		{StateConnecting, EventError, StateFailed, true},
		{StateConnected, EventError, StateFailed, true},
		{StateConnecting, EventDisconnect, StateDisconnected, true},
		{StateConnected, EventDisconnect, StateDisconnected, true},
		{StateFailed, EventDisconnect, StateDisconnected, true},
		{StateDisconnected, EventDisconnect, StateDisconnected, true},

		{StateConnected, EventConnect, StateConnected, false},
		{StateFailed, EventConnect, StateFailed, false},
		{StateDisconnected, EventOpened, StateDisconnected, false},
		{StateConnected, EventOpened, StateConnected, false},
		{StateDisconnected, EventError, StateDisconnected, false},
		{StateFailed, EventError, StateFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+" on "+tt.event.String(), func(t *testing.T) {
			got, ok := Transition(tt.from, tt.event)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Expected (%v, %v), got (%v, %v)", tt.want, tt.ok, got, ok)
			}
		})
	}
}

// TestStatusString tests the display form.
func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{Status{State: StateDisconnected}, "Disconnected"},
		{Status{State: StateConnecting}, "Connecting"},
		{Status{State: StateConnected}, "Connected"},
		{Status{State: StateFailed, Reason: "connection refused"}, "Failed: connection refused"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}

	text, err := Status{State: StateConnected}.MarshalText()
	if err != nil || string(text) != "Connected" {
		t.Errorf("Expected MarshalText %q, got %q (err=%v)", "Connected", text, err)
	}
}

// TestStatusUnmarshalText tests parsing the display form.
func TestStatusUnmarshalText(t *testing.T) {
	for _, want := range []Status{
		{State: StateDisconnected},
		{State: StateConnecting},
		{State: StateConnected},
		{State: StateFailed, Reason: "read udp: use of closed connection"},
	} {
		text, _ := want.MarshalText()
		var got Status
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("Expected %q to parse, got %v", text, err)
		}
		if got != want {
			t.Errorf("Expected %+v, got %+v", want, got)
		}
	}

	var s Status
	if err := s.UnmarshalText([]byte("Sleeping")); err == nil {
		t.Error("Expected error for unknown status")
	}
}
