package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andreyvit/rset"
)

const ordersJSON = `[
	{"id": 1, "name": "apple", "qty": 3},
	{"id": 2, "name": "pear", "qty": 5},
	{"id": 3, "name": "apple", "qty": 1}
]`

const columnarJSON = `{
	"s": [{"n": "id", "t": "integer"}, {"n": "name", "t": "string"}],
	"d": [[1, "apple"], [2, "pear"]],
	"r": 42,
	"n": {"s": [{"n": "total", "t": "integer"}], "d": [2]}
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	c, err := newCommand(WithArgs(args...), WithOutput(&out), WithHomeDir(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Execute(); err != nil {
		t.Fatalf("** rsetctl %v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func runErr(t *testing.T, args ...string) error {
	t.Helper()
	var out bytes.Buffer
	c, err := newCommand(WithArgs(args...), WithOutput(&out), WithHomeDir(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	err = c.Execute()
	if err == nil {
		t.Fatalf("** rsetctl %v succeeded, wanted an error\n%s", args, out.String())
	}
	return err
}

func contains(t *testing.T, out string, wanted ...string) {
	t.Helper()
	for _, s := range wanted {
		if !strings.Contains(out, s) {
			t.Errorf("** output lacks %q:\n%s", s, out)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	got := run(t, "version")
	if got != Version+"\n" {
		t.Errorf("** got output %q, wanted %q", got, Version+"\n")
	}
}

func TestInspectCmd_Plain(t *testing.T) {
	path := writeFile(t, "orders.json", ordersJSON)
	out := run(t, "inspect", path, "--id", "id", "--rows")
	contains(t, out,
		`plain (3 rows, id "id")`,
		"plain.f.0 = id:integer",
		"plain.f.1 = name:string",
		"plain.stats: materialized = 0",
		`plain.1 = (-) {"id":2,"name":"pear","qty":5}`,
	)
}

func TestInspectCmd_Columnar(t *testing.T) {
	path := writeFile(t, "orders.json", columnarJSON)
	out := run(t, "inspect", path)
	contains(t, out,
		"columnar (2 rows",
		"columnar.f.1 = name:string",
		"meta.n = record {\"total\":2}",
		"meta.r = 42",
	)
	if strings.Contains(out, "columnar.0 =") {
		t.Errorf("** rows printed without --rows:\n%s", out)
	}
}

func TestInspectCmd_Declaration(t *testing.T) {
	path := writeFile(t, "orders.json", ordersJSON)
	decl := writeFile(t, "format.yaml", "qty: {type: money, precision: 2}\n")
	out := run(t, "inspect", path, "--format", decl)
	contains(t, out, "plain.f.2 = qty:money")
}

func TestInspectCmd_MsgPack(t *testing.T) {
	var rows any
	if err := json.Unmarshal([]byte(ordersJSON), &rows); err != nil {
		t.Fatal(err)
	}
	data, err := rset.MsgPack.Marshal(rows)
	if err != nil {
		t.Fatal(err)
	}
	path := writeFile(t, "orders.mp", string(data))
	contains(t, run(t, "inspect", path), "plain (3 rows")
}

func TestInspectCmd_Errors(t *testing.T) {
	path := writeFile(t, "broken.json", `[{"id": `)
	runErr(t, "inspect", path)
	runErr(t, "inspect", filepath.Join(t.TempDir(), "missing.json"))

	good := writeFile(t, "orders.json", ordersJSON)
	runErr(t, "inspect", good, "--adapter", "nope")
	runErr(t, "inspect", good, "--input-format", "xml")
	runErr(t, "inspect", good, "--verbosity", "loud")
	runErr(t, "inspect")
}

func TestLookupCmd(t *testing.T) {
	path := writeFile(t, "orders.json", ordersJSON)

	out := run(t, "lookup", path, "--field", "name", "--value", "apple")
	eqLines(t, out,
		`0	{"id":1,"name":"apple","qty":3}`,
		`2	{"id":3,"name":"apple","qty":1}`,
	)

	out = run(t, "lookup", path, "--id", "id", "--value", "2")
	eqLines(t, out, `1	{"id":2,"name":"pear","qty":5}`)

	out = run(t, "lookup", path, "--field", "qty", "--value", "42")
	eqLines(t, out, "not found")

	runErr(t, "lookup", path, "--value", "1")
}

func eqLines(t *testing.T, out string, wanted ...string) {
	t.Helper()
	got := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if strings.Join(got, "\n") != strings.Join(wanted, "\n") {
		t.Errorf("** got:\n%s\nwanted:\n%s", out, strings.Join(wanted, "\n"))
	}
}

func TestEnvelopeCmd(t *testing.T) {
	path := writeFile(t, "orders.json", ordersJSON)
	out := run(t, "envelope", path, "--id", "id")

	var env map[string]any
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("** envelope is not JSON: %v\n%s", err, out)
	}
	if env["$serialized$"] != "inst" || env["module"] != rset.ModuleRecordSet {
		t.Errorf("** unexpected envelope head: %v", env)
	}
	state := env["state"].(map[string]any)
	if state["idProperty"] != "id" || state["adapter"] != rset.AdapterPlain {
		t.Errorf("** unexpected envelope state: %v", state)
	}

	v, err := rset.NewSerializer(nil).Decode(rset.JSON, []byte(out))
	if err != nil {
		t.Fatal(err)
	}
	rs := v.(*rset.RecordSet)
	if rs.Count() != 3 || rs.RecordByID(3) == nil {
		t.Errorf("** decoded record set has %d rows", rs.Count())
	}
}

func TestEnvelopeCmd_MsgPack(t *testing.T) {
	path := writeFile(t, "orders.json", columnarJSON)
	out := run(t, "envelope", path, "--encoding", "msgpack")

	v, err := rset.NewSerializer(nil).Decode(rset.MsgPack, []byte(out))
	if err != nil {
		t.Fatal(err)
	}
	rs := v.(*rset.RecordSet)
	if rs.Count() != 2 || rs.Adapter().Kind() != rset.AdapterColumnar {
		t.Errorf("** decoded %d rows with %s adapter", rs.Count(), rs.Adapter().Kind())
	}
}

func TestConfigFile(t *testing.T) {
	home := t.TempDir()
	if err := os.WriteFile(filepath.Join(home, ".rsetctl.yaml"), []byte("id: id\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := writeFile(t, "orders.json", ordersJSON)

	var out bytes.Buffer
	c, err := newCommand(WithArgs("inspect", path), WithOutput(&out), WithHomeDir(home))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Execute(); err != nil {
		t.Fatal(err)
	}
	contains(t, out.String(), `plain (3 rows, id "id")`)
}
