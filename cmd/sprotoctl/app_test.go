package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/sproto/internal/testutil/testlog"
)

const schemaYAML = `types:
  - name: package
    fields:
      - {name: type, tag: 0, type: integer}
      - {name: session, tag: 1, type: integer}
  - name: Person
    fields:
      - {name: name, tag: 0, type: string}
      - {name: age, tag: 1, type: integer}
      - {name: marital, tag: 2, type: boolean}
protocols:
  - {name: ping, tag: 1, confirm: true}
`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	app := Instance()
	var out bytes.Buffer
	app.Reader = strings.NewReader(stdin)
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"sprotoctl"}, args...))
	return out.String(), err
}

func writeSchema(t *testing.T) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "rpc.yaml")
	if err := os.WriteFile(path, []byte(schemaYAML), 0o600); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	return dir, path
}

func TestEncodeDecodeCommands(t *testing.T) {
	testlog.Start(t)
	dir, schema := writeSchema(t)
	cfg := filepath.Join(dir, "missing.toml")

	out, err := run(t, "name: Alice\nage: 13\nmarital: false\n", "--config", cfg, "--schema", schema, "encode", "--type", "Person")
	if err == nil {
		t.Fatalf("explicit missing config accepted: %s", out)
	}

	out, err = run(t, "name: Alice\nage: 13\nmarital: false\n", "--schema", schema, "encode", "--type", "Person")
	if err != nil {
		t.Fatalf("encode: %v (%s)", err, out)
	}
	want := "030000001c00020005000000416c696365"
	if strings.TrimSpace(out) != want {
		t.Fatalf("encode: got %q want %q", strings.TrimSpace(out), want)
	}

	out, err = run(t, want, "--schema", schema, "decode", "--type", "Person")
	if err != nil {
		t.Fatalf("decode: %v (%s)", err, out)
	}
	for _, line := range []string{"name: Alice", "age: 13", "marital: false"} {
		if !strings.Contains(out, line) {
			t.Fatalf("decode output missing %q:\n%s", line, out)
		}
	}

	packed, err := run(t, "{name: Bob, age: 40}", "--schema", schema, "encode", "--type", "Person", "--pack")
	if err != nil {
		t.Fatalf("encode --pack: %v", err)
	}
	out, err = run(t, packed, "--schema", schema, "decode", "--type", "Person", "--packed")
	if err != nil {
		t.Fatalf("decode --packed: %v (%s)", err, out)
	}
	if !strings.Contains(out, "name: Bob") || !strings.Contains(out, "age: 40") {
		t.Fatalf("decode --packed output:\n%s", out)
	}
}

func TestPackUnpackCommands(t *testing.T) {
	testlog.Start(t)
	out, err := run(t, "08 00 00 00 03 00 02 00 19 00 00 00 aa 01 00 00", "pack")
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if strings.TrimSpace(out) != "510803023119aa01" {
		t.Fatalf("pack: got %q", strings.TrimSpace(out))
	}
	out, err = run(t, "ff03"+strings.Repeat("8a", 30)+"0000", "unpack", "--size", "30")
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if strings.TrimSpace(out) != strings.Repeat("8a", 30) {
		t.Fatalf("unpack: got %q", strings.TrimSpace(out))
	}
	if _, err := run(t, "zz", "pack"); err == nil {
		t.Fatalf("non-hex input accepted")
	}
}

func TestMetricsFileFlag(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "sprotoctl.prom")
	if _, err := run(t, "0800000003000200", "--metrics-file", path, "pack"); err != nil {
		t.Fatalf("pack: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(raw), `sproto_codec_bytes_total{op="pack"}`) {
		t.Fatalf("pack metric missing:\n%s", raw)
	}
}

func TestCheckAndConfigCommands(t *testing.T) {
	testlog.Start(t)
	dir, schema := writeSchema(t)
	cfg := filepath.Join(dir, "sprotoctl.toml")

	out, err := run(t, "", "--config", cfg, "config", "init")
	if err != nil {
		t.Fatalf("config init: %v (%s)", err, out)
	}
	if _, err := os.Stat(cfg); err != nil {
		t.Fatalf("template not written: %v", err)
	}
	if _, err := run(t, "", "--config", cfg, "config", "init"); err == nil {
		t.Fatalf("config init overwrote without --force")
	}
	body := "schema = \"rpc.yaml\"\nlog_level = \"warn\"\n"
	if err := os.WriteFile(cfg, []byte(body), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	out, err = run(t, "", "--config", cfg, "check")
	if err != nil {
		t.Fatalf("check: %v (%s)", err, out)
	}
	for _, line := range []string{
		"type package fields=2 slots=2",
		"type Person fields=3 slots=3",
		"protocol 1 ping request=- response=confirm",
	} {
		if !strings.Contains(out, line) {
			t.Fatalf("check output missing %q:\n%s", line, out)
		}
	}

	if _, err := run(t, "", "--schema", schema, "--log-level", "loud", "check"); err == nil {
		t.Fatalf("bad log level accepted")
	}
}
