package cli

import "testing"

func TestLogScan(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want logConfig
	}{
		{
			name: "separate values",
			args: []string{"convert", "--log-level", "debug", "--log-format", "json"},
			want: logConfig{Level: "debug", Format: "json"},
		},
		{
			name: "assigned values",
			args: []string{"--log-level=warn", "--log-pretty=false", "--log-caller"},
			want: logConfig{Level: "warn", Caller: true},
		},
		{
			name: "negated",
			args: []string{"--no-log-pretty", "--no-log-caller=false"},
			want: logConfig{Caller: true},
		},
		{
			name: "value looks like a flag",
			args: []string{"--log-level", "-x"},
			want: logConfig{},
		},
		{
			name: "stops at double dash",
			args: []string{"--", "--log-caller"},
			want: logConfig{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got logConfig

			got.scan(tt.args)

			if got != tt.want {
				t.Errorf("scan(%q) = %+v, want %+v", tt.args, got, tt.want)
			}
		})
	}
}
