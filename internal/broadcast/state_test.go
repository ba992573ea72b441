package broadcast

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validState(active bool) State {
	return State{LogBroadcast: true, LocalActive: active, Separator: TwoSpaces, Target: &Target{Group: "224.1.1.1", Port: 5004, TTL: 2}}
}

func TestMode(t *testing.T) {
	tests := []struct {
		name string
		in   State
		want Mode
	}{
		{name: "initial", in: InitialState(), want: ModeDisabled},
		{name: "active", in: validState(true), want: ModeActive},
		{name: "paused", in: validState(false), want: ModePaused},
		{name: "flag without target", in: State{LogBroadcast: true, LocalActive: true}, want: ModeDisabled},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.in.Mode())
		})
	}
}

func TestTogglePairRestoresState(t *testing.T) {
	start := validState(true)

	paused, n1 := Toggle(start)
	require.Equal(t, ModePaused, paused.Mode())
	active, n2 := Toggle(paused)

	require.Equal(t, start, active)
	require.Equal(t, []Notice{NoticeStopped, NoticeStarted}, []Notice{n1, n2})
}

func TestToggleWhileDisabled(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := State{
			LogBroadcast: false,
			LocalActive:  rapid.Bool().Draw(t, "localActive"),
			Separator:    rapid.String().Draw(t, "sep"),
		}
		if rapid.Bool().Draw(t, "withTarget") {
			s.Target = &Target{Group: "224.1.1.1", Port: 5004, TTL: 2}
		}
		n := rapid.IntRange(1, 5).Draw(t, "toggles")
		cur := s
		for i := 0; i < n; i++ {
			var notice Notice
			cur, notice = Toggle(cur)
			if notice != NoticeDisabled {
				t.Fatalf("notice = %q", notice)
			}
		}
		if cur.LocalActive != s.LocalActive || cur.LogBroadcast != s.LogBroadcast || cur.Separator != s.Separator || cur.Target != s.Target {
			t.Fatalf("disabled state changed: %+v -> %+v", s, cur)
		}
	})
}

func TestTargetAddr(t *testing.T) {
	require.Equal(t, "224.1.1.1:5004", Target{Group: "224.1.1.1", Port: 5004}.Addr())
}
