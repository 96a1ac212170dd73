package cmd

import "testing"

func TestReplayCmd_Registered(t *testing.T) {
	found := false
	for _, c := range rootCmd.Commands() {
		if c.Name() == "replay" {
			found = true
			break
		}
	}
	if !found {
		t.Error("replay command not registered with rootCmd")
	}
}

func TestReplayCmd_RequiresTwoArgs(t *testing.T) {
	if err := replayCmd.Args(replayCmd, []string{"only-one"}); err == nil {
		t.Error("replayCmd should reject a single argument")
	}
	if err := replayCmd.Args(replayCmd, []string{"session.json", "proxy-id"}); err != nil {
		t.Errorf("replayCmd should accept exactly two arguments, got error: %v", err)
	}
}

func TestResolveReplayTimeout(t *testing.T) {
	cases := []struct {
		name        string
		flag        string
		config      string
		want        string
		expectError bool
	}{
		{name: "flag wins", flag: "5s", config: "30s", want: "5s"},
		{name: "falls back to config", flag: "", config: "20s", want: "20s"},
		{name: "falls back to default", flag: "", config: "", want: "10s"},
		{name: "invalid duration", flag: "not-a-duration", expectError: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolveReplayTimeout(tc.flag, tc.config)
			if tc.expectError {
				if err == nil {
					t.Fatal("expected an error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tc.want {
				t.Errorf("resolveReplayTimeout(%q, %q) = %s, want %s", tc.flag, tc.config, got, tc.want)
			}
		})
	}
}
