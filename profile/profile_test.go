package profile

import "testing"

func TestOptions(t *testing.T) {
	var s Settings

	for _, opt := range []Option{WithMode("cpu"), WithPath("/tmp/p"), WithQuiet(true)} {
		s = opt(s)
	}

	if want := (Settings{Mode: "cpu", Path: "/tmp/p", Quiet: true}); s != want {
		t.Errorf("settings = %+v, want %+v", s, want)
	}
}

func TestStartWithoutMode(t *testing.T) {
	stop := Start(WithPath(t.TempDir()))
	if _, ok := stop.(ignore); !ok {
		t.Errorf("Start without mode = %T, want no-op", stop)
	}

	stop.Stop()
}
