package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSetupWritesStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithOptions("bkc", "test", Options{Level: slog.LevelWarn, Output: &buf})
	logger.Info("dropped")
	logger.Warn("kept", slog.String("operation", "delegate"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if line["message"] != "kept" || line["severity"] != "WARN" {
		t.Fatalf("unexpected line %v", line)
	}
	if line["service"] != "bkc" || line["env"] != "test" {
		t.Fatalf("missing service attributes: %v", line)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMaskField(t *testing.T) {
	if got := MaskField("passphrase", "hunter2").Value.String(); got != RedactedValue {
		t.Fatalf("expected passphrase to be masked, got %q", got)
	}
	if got := MaskField("user", "0xabc").Value.String(); got != "0xabc" {
		t.Fatalf("allowlisted key was masked: %q", got)
	}
	if got := MaskField("keystore", "").Value.String(); got != "" {
		t.Fatalf("empty value should pass through, got %q", got)
	}
}

func TestMaskURL(t *testing.T) {
	cases := map[string]string{
		"https://eth-sepolia.g.alchemy.com/v2/secretkey": "https://eth-sepolia.g.alchemy.com/" + RedactedValue,
		"https://rpc.example?apikey=abc":                 "https://rpc.example/" + RedactedValue,
		"http://127.0.0.1:8545":                          "http://127.0.0.1:8545",
		"not a url":                                      RedactedValue,
	}
	for in, want := range cases {
		if got := MaskURL("rpc_url", in).Value.String(); got != want {
			t.Fatalf("MaskURL(%q) = %q, want %q", in, got, want)
		}
	}
}
