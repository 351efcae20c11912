package main

import "testing"

func TestParsePort(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want int
		ok   bool
	}{
		{"valid", []string{"sensorgate", "8080"}, 8080, true},
		{"no args", []string{"sensorgate"}, 0, false},
		{"too many args", []string{"sensorgate", "8080", "extra"}, 0, false},
		{"non numeric", []string{"sensorgate", "abc"}, 0, false},
		{"trailing residue", []string{"sensorgate", "8080x"}, 0, false},
		{"empty string", []string{"sensorgate", ""}, 0, false},
		{"negative", []string{"sensorgate", "-1"}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			port, ok := parsePort(tc.args)
			if ok != tc.ok {
				t.Fatalf("parsePort(%v) ok = %v, want %v", tc.args, ok, tc.ok)
			}
			if ok && port != tc.want {
				t.Fatalf("parsePort(%v) = %d, want %d", tc.args, port, tc.want)
			}
		})
	}
}
