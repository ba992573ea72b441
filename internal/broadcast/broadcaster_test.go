package broadcast

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"speechspy/internal/eventbus"
	"speechspy/internal/settings"
	"speechspy/internal/speech"
	logx "speechspy/pkg/logx"
)

type datagram struct {
	payload string
	addr    string
}

type fakeSender struct {
	mu        sync.Mutex
	ttls      []int
	sent      []datagram
	configErr error
	delay     time.Duration
}

func (f *fakeSender) Configure(ttl int) error {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.configErr != nil {
		return f.configErr
	}
	f.ttls = append(f.ttls, ttl)
	return nil
}

func (f *fakeSender) Send(payload []byte, group string, port int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, datagram{payload: string(payload), addr: Target{Group: group, Port: port}.Addr()})
}

func (f *fakeSender) datagrams() []datagram {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]datagram(nil), f.sent...)
}

type mapSettings map[string]string

func (m mapSettings) Get(key string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return settings.Defaults()[key]
}

func (m mapSettings) Set(key, value string) string {
	m[key] = value
	return value
}

func helloWorld() speech.Sequence {
	return speech.Sequence{
		speech.Text("Hello"),
		speech.Command{Kind: speech.CommandPause, Value: "200"},
		speech.Text("world"),
	}
}

func errorLines(buf *bytes.Buffer) int {
	return strings.Count(buf.String(), `"level":"error"`)
}

func TestScenarioNewlineSeparator(t *testing.T) {
	fs := &fakeSender{}
	cfg := mapSettings{"group": "224.1.1.1", "port": "5004", "ttl": "2", "separator": "nl", "customSeparator": ""}
	b := New(cfg, fs, logx.Nop())

	b.CaptureSpeech(helloWorld())

	require.Equal(t, []datagram{{payload: "Hello\nworld", addr: "224.1.1.1:5004"}}, fs.datagrams())
	require.Equal(t, []int{2}, fs.ttls)
}

func TestFirstUtteranceAppliesDefaults(t *testing.T) {
	fs := &fakeSender{}
	b := New(settings.New(nil, logx.Nop()), fs, logx.Nop())
	require.True(t, b.Dirty())

	b.CaptureSpeech(speech.Sequence{speech.Text("a"), speech.Text("b")})

	require.False(t, b.Dirty())
	require.Equal(t, []datagram{{payload: "a  b", addr: "224.1.1.1:5004"}}, fs.datagrams())
}

func TestMarkerOnlyUtteranceSendsNothing(t *testing.T) {
	fs := &fakeSender{}
	b := New(mapSettings{}, fs, logx.Nop())

	b.CaptureSpeech(speech.Sequence{speech.Command{Kind: speech.CommandPause, Value: "100"}, speech.Command{Kind: speech.CommandIndex, Value: "3"}})
	b.CaptureSpeech(nil)
	require.Empty(t, fs.datagrams())

	b.CaptureSpeech(speech.Sequence{speech.Text("")})
	require.Len(t, fs.datagrams(), 1)
}

func TestMissingFieldsDisable(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := mapSettings{}
		keys := []string{settings.KeyGroup, settings.KeyPort, settings.KeyTTL}
		// blank at least one of them
		blank := rapid.SliceOfNDistinct(rapid.SampledFrom(keys), 1, 3, func(s string) string { return s }).Draw(t, "blank")
		for _, k := range blank {
			cfg[k] = rapid.SampledFrom([]string{"", " "}).Draw(t, "empty")
		}
		fs := &fakeSender{}
		b := New(cfg, fs, logx.Nop())

		n := rapid.IntRange(0, 5).Draw(t, "utterances")
		for i := 0; i < n; i++ {
			b.CaptureSpeech(speech.Sequence{speech.Text(rapid.String().Draw(t, "text"))})
		}
		if mode := b.Status().Mode; mode != ModeDisabled {
			t.Fatalf("mode = %s", mode)
		}
		if err := b.ApplyUserConfig(); !errors.Is(err, ErrConfigInvalid) {
			t.Fatalf("err = %v", err)
		}
		if len(fs.datagrams()) != 0 {
			t.Fatalf("sent %d datagrams while disabled", len(fs.datagrams()))
		}
	})
}

func TestValidConfigSendsOncePerTextUtterance(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		fs := &fakeSender{}
		b := New(mapSettings{}, fs, logx.Nop())

		want := 0
		n := rapid.IntRange(0, 10).Draw(t, "utterances")
		for i := 0; i < n; i++ {
			var seq speech.Sequence
			parts := rapid.IntRange(0, 4).Draw(t, "parts")
			for j := 0; j < parts; j++ {
				if rapid.Bool().Draw(t, "isText") {
					seq = append(seq, speech.Text(rapid.String().Draw(t, "text")))
				} else {
					seq = append(seq, speech.Command{Kind: speech.CommandPitch, Value: "50"})
				}
			}
			if seq.HasText() {
				want++
			}
			b.CaptureSpeech(seq)
		}
		if got := len(fs.datagrams()); got != want {
			t.Fatalf("sent %d datagrams, want %d", got, want)
		}
	})
}

func TestNonIntegerTTLDisablesUntilCorrected(t *testing.T) {
	var buf bytes.Buffer
	fs := &fakeSender{}
	cfg := mapSettings{"ttl": "two"}
	b := New(cfg, fs, logx.NewWriter(&buf, "debug"))

	for i := 0; i < 3; i++ {
		b.CaptureSpeech(helloWorld())
	}
	require.Empty(t, fs.datagrams())
	require.Equal(t, 1, errorLines(&buf))
	st := b.Status()
	require.Equal(t, ModeDisabled, st.Mode)
	require.Contains(t, st.LastError, "ttl")

	cfg.Set(settings.KeyTTL, "3")
	b.MarkDirty()
	b.CaptureSpeech(helloWorld())

	require.Len(t, fs.datagrams(), 1)
	require.Equal(t, []int{3}, fs.ttls)
	require.Equal(t, 1, errorLines(&buf))
}

func TestParseTargetErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  mapSettings
		want error
	}{
		{name: "defaults", cfg: mapSettings{}},
		{name: "empty group", cfg: mapSettings{"group": ""}, want: ErrConfigInvalid},
		{name: "bad port", cfg: mapSettings{"port": "50x"}, want: ErrConfigParse},
		{name: "port out of range", cfg: mapSettings{"port": "70000"}, want: ErrConfigParse},
		{name: "port zero", cfg: mapSettings{"port": "0"}, want: ErrConfigParse},
		{name: "negative ttl", cfg: mapSettings{"ttl": "-1"}, want: ErrConfigParse},
		{name: "ttl too large", cfg: mapSettings{"ttl": "256"}, want: ErrConfigParse},
		{name: "padded values", cfg: mapSettings{"port": " 6000 ", "ttl": " 1"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseTarget(tc.cfg)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSocketOptionFailureRollsBack(t *testing.T) {
	fs := &fakeSender{}
	b := New(mapSettings{}, fs, logx.Nop())
	require.NoError(t, b.ApplyUserConfig())
	require.Equal(t, ModeActive, b.Status().Mode)

	fs.configErr = errors.New("setsockopt: invalid argument")
	err := b.ApplyUserConfig()
	require.ErrorIs(t, err, ErrSocketOption)
	require.Equal(t, ModeDisabled, b.Status().Mode)

	b.CaptureSpeech(helloWorld())
	require.Empty(t, fs.datagrams())
}

func TestUnknownSeparatorFallsBackAndLogsOnce(t *testing.T) {
	var buf bytes.Buffer
	fs := &fakeSender{}
	b := New(mapSettings{"separator": "pipe"}, fs, logx.NewWriter(&buf, "debug"))

	b.CaptureSpeech(helloWorld())
	b.CaptureSpeech(helloWorld())

	require.Equal(t, 1, errorLines(&buf))
	require.Contains(t, buf.String(), "separator not recognised")
	require.Len(t, fs.datagrams(), 2)
	require.Equal(t, "Hello  world", fs.datagrams()[0].payload)
	require.Equal(t, ModeActive, b.Status().Mode)
}

func TestCustomSeparatorTab(t *testing.T) {
	fs := &fakeSender{}
	b := New(mapSettings{"separator": "custom", "customSeparator": `\t`}, fs, logx.Nop())
	b.CaptureSpeech(helloWorld())
	require.Equal(t, "Hello\tworld", fs.datagrams()[0].payload)
}

func TestTogglePauseAndResume(t *testing.T) {
	fs := &fakeSender{}
	b := New(mapSettings{}, fs, logx.Nop())

	mode, n1 := b.Toggle()
	require.Equal(t, ModePaused, mode)
	b.CaptureSpeech(helloWorld())
	require.Empty(t, fs.datagrams())

	mode, n2 := b.Toggle()
	require.Equal(t, ModeActive, mode)
	require.Equal(t, []Notice{NoticeStopped, NoticeStarted}, []Notice{n1, n2})

	b.CaptureSpeech(helloWorld())
	require.Len(t, fs.datagrams(), 1)
}

func TestToggleWhileDisabledKeepsState(t *testing.T) {
	fs := &fakeSender{}
	b := New(mapSettings{"port": ""}, fs, logx.Nop())

	for i := 0; i < 3; i++ {
		mode, notice := b.Toggle()
		require.Equal(t, ModeDisabled, mode)
		require.Equal(t, NoticeDisabled, notice)
	}
}

func TestPauseSurvivesInvalidation(t *testing.T) {
	fs := &fakeSender{}
	cfg := mapSettings{}
	b := New(cfg, fs, logx.Nop())
	b.Toggle()

	cfg.Set(settings.KeyGroup, "")
	b.MarkDirty()
	require.Equal(t, ModeDisabled, b.Status().Mode)

	cfg.Set(settings.KeyGroup, "239.1.2.3")
	b.MarkDirty()
	require.Equal(t, ModePaused, b.Status().Mode)
}

type recorder struct {
	mu           sync.Mutex
	outcomes     []string
	toggles      []string
	reconfigured []bool
}

func (r *recorder) Utterance(o string) { r.mu.Lock(); r.outcomes = append(r.outcomes, o); r.mu.Unlock() }
func (r *recorder) Toggled(to string)  { r.mu.Lock(); r.toggles = append(r.toggles, to); r.mu.Unlock() }
func (r *recorder) Reconfigured(ok bool, _ string) {
	r.mu.Lock()
	r.reconfigured = append(r.reconfigured, ok)
	r.mu.Unlock()
}

func TestEventsAndRecorder(t *testing.T) {
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(8)
	defer unsub()
	rec := &recorder{}
	b := New(mapSettings{}, &fakeSender{}, logx.Nop(), WithBus(bus), WithRecorder(rec))

	b.CaptureSpeech(helloWorld())
	b.Toggle()
	b.CaptureSpeech(helloWorld())

	var got []eventbus.Event
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case ev := <-ch:
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("got %d events", len(got))
		}
	}
	require.Equal(t, eventbus.TypeReconfigured, got[0].Type)
	require.Equal(t, eventbus.StateChange{From: "disabled", To: "active", Target: "224.1.1.1:5004"}, got[0].Data)
	require.Equal(t, eventbus.TypeToggled, got[1].Type)
	require.Equal(t, string(NoticeStopped), got[1].Data.(eventbus.StateChange).Message)

	require.Equal(t, []string{"sent", "skipped"}, rec.outcomes)
	require.Equal(t, []string{"paused"}, rec.toggles)
	require.Equal(t, []bool{true}, rec.reconfigured)
}

func TestConcurrentCaptureAndReconfigure(t *testing.T) {
	fs := &fakeSender{}
	b := New(settings.New(nil, logx.Nop()), fs, logx.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.CaptureSpeech(helloWorld())
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			b.MarkDirty()
			b.Status()
		}
	}()
	wg.Wait()
	require.Len(t, fs.datagrams(), 200)
}

func TestCaptureWaitsForInFlightApply(t *testing.T) {
	fs := &fakeSender{delay: 20 * time.Millisecond}
	b := New(settings.New(nil, logx.Nop()), fs, logx.Nop())

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			b.CaptureSpeech(speech.Sequence{speech.Text("x")})
		}()
	}
	close(start)
	wg.Wait()

	require.Len(t, fs.datagrams(), 4)
	require.Equal(t, []int{2}, fs.ttls)
}
