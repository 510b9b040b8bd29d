package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/johan-st/vpin-tui/internal/access"
	"github.com/johan-st/vpin-tui/internal/bridge"
	"github.com/johan-st/vpin-tui/internal/database"
	"github.com/johan-st/vpin-tui/internal/testutil"
)

// testEnv runs commands against a fresh copy of the pin fixture.
type testEnv struct {
	handler  *Handler
	resolver *access.Resolver

	admin  *access.UserInfo
	lead   *access.UserInfo
	reader *access.UserInfo
	anon   *access.UserInfo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbPath, cleanup := testutil.TestDB(t, "pins.sql")
	t.Cleanup(cleanup)

	return newTestEnvWith(t, bridge.SQLiteConnector(dbPath, database.DefaultOpenOptions()))
}

func newTestEnvWith(t *testing.T, connect bridge.Connector) *testEnv {
	t.Helper()

	r := access.NewResolver()
	r.AddAdmin("root")
	r.AddUserRule("lead", "dev01/**", access.ReadWrite)
	r.AddUserRule("lead", "**", access.ReadOnly)
	r.AddUserRule("reader", "**", access.ReadOnly)

	return &testEnv{
		handler:  NewHandler(connect, func() *access.Resolver { return r }, "test"),
		resolver: r,
		admin:    &access.UserInfo{Name: "root"},
		lead:     &access.UserInfo{Name: "lead"},
		reader:   &access.UserInfo{Name: "reader"},
		anon:     &access.UserInfo{IsAnonymous: true, AnonymousName: "guest-comp-0042"},
	}
}

func (e *testEnv) run(user *access.UserInfo, args ...string) (stdout, stderr string, err error) {
	var outBuf, errBuf bytes.Buffer
	err = e.handler.HandleLocal(context.Background(), NewLocalContext(user, args, &outBuf, &errBuf))
	return outBuf.String(), errBuf.String(), err
}

func (e *testEnv) mustRun(t *testing.T, user *access.UserInfo, args ...string) string {
	t.Helper()
	out, errOut, err := e.run(user, args...)
	if err != nil {
		t.Fatalf("%v failed: %v\nstderr: %s", args, err, errOut)
	}
	return out
}

// column returns the first field of every line after the header.
func column(out string) []string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	var result []string
	for _, line := range lines[1:] {
		result = append(result, strings.Fields(line)[0])
	}
	return result
}

func TestCatalogCommands(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"packages"}, []string{"gcc", "houdini", "maya", "nuke", "python", "vray"}},
		{[]string{"versions", "maya"}, []string{"2020.4", "2022.1"}},
		{[]string{"shows"}, []string{"bayou", "dev01"}},
		{[]string{"roles"}, []string{"any", "anim", "fx", "model", "model.beta"}},
		{[]string{"platforms"}, []string{"any", "cent7_64", "win10_64"}},
		{[]string{"sites"}, []string{"any", "montreal", "portland"}},
		{[]string{"withs", "1"}, []string{"python", "vray"}},
		{[]string{"levels", "dev01"}, []string{"AA", "RD"}},
		{[]string{"pins", "--package=houdini"}, []string{"6", "2"}},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out := env.mustRun(t, env.reader, tt.args...)
			if got := column(out); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v\n%s", got, tt.want, out)
			}
		})
	}
}

func TestPins_Formats(t *testing.T) {
	env := newTestEnv(t)

	t.Run("json", func(t *testing.T) {
		out := env.mustRun(t, env.reader, "pins", "--package=maya", "--format=json")
		var pins []pinJSON
		if err := json.Unmarshal([]byte(out), &pins); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if len(pins) != 2 || pins[0].ID != 5 || pins[1].Level != "facility" || pins[1].Withs != 2 {
			t.Errorf("pins = %+v", pins)
		}
	})

	t.Run("csv", func(t *testing.T) {
		out := env.mustRun(t, env.reader, "pins", "--level=dev01", "--format=csv")
		records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
		if err != nil {
			t.Fatalf("invalid CSV: %v", err)
		}
		if len(records) != 4 {
			t.Fatalf("got %d records, want header and 3 pins", len(records))
		}
		if records[0][0] != "ID" || records[1][0] != "6" || records[1][3] != "dev01.RD" {
			t.Errorf("records = %v", records)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if _, errOut, err := env.run(env.reader, "pins", "--format=xml"); err == nil || !strings.Contains(errOut, "Unknown format") {
			t.Errorf("err = %v, stderr = %q", err, errOut)
		}
	})
}

func TestSet(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, env.lead, "set", "5", "2020.4", "--comment=roll back maya", "--format=json")
	var saved map[string]any
	if err := json.Unmarshal([]byte(out), &saved); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if saved["revision"] != float64(2) {
		t.Errorf("saved = %v", saved)
	}

	out = env.mustRun(t, env.reader, "changes", "2", "--format=json")
	var changes []changeJSON
	if err := json.Unmarshal([]byte(out), &changes); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	want := []changeJSON{{
		PinID: 5, Package: "maya", Level: "dev01", Role: "model", Platform: "any", Site: "any",
		OldVersion: "2022.1", NewVersion: "2020.4",
	}}
	if !reflect.DeepEqual(changes, want) {
		t.Errorf("changes = %+v, want %+v", changes, want)
	}

	out = env.mustRun(t, env.reader, "history", "--author=lead", "--format=json")
	var revs []revisionJSON
	if err := json.Unmarshal([]byte(out), &revs); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(revs) != 1 || revs[0].Comment != "roll back maya" || revs[0].Changes != 1 {
		t.Errorf("revisions = %+v", revs)
	}
}

func TestSet_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		user    *access.UserInfo
		args    []string
		wantErr string
	}{
		{"facility is read-only for lead", env.lead, []string{"set", "1", "2022.1"}, "access denied"},
		{"reader cannot write", env.reader, []string{"set", "5", "2020.4"}, "access denied"},
		{"unknown pin", env.lead, []string{"set", "99", "1.0"}, "pin 99 not found"},
		{"same version", env.lead, []string{"set", "5", "2022.1"}, "already at 2022.1"},
		{"unknown version", env.admin, []string{"set", "5", "1999"}, "Error"},
		{"bad id", env.lead, []string{"set", "five", "1.0"}, "Invalid pin-id"},
		{"missing version", env.lead, []string{"set", "5"}, "Missing required argument: version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errOut, err := env.run(tt.user, tt.args...)
			if err == nil {
				t.Fatal("expected failure")
			}
			if !strings.Contains(errOut, tt.wantErr) {
				t.Errorf("stderr = %q, want %q", errOut, tt.wantErr)
			}
		})
	}

	// Nothing was written.
	out := env.mustRun(t, env.reader, "history")
	if got := column(out); !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("history ids = %v", got)
	}
}

func TestAccessDenied(t *testing.T) {
	env := newTestEnv(t)

	if _, errOut, err := env.run(env.anon, "packages"); err == nil || !strings.Contains(errOut, "Access denied") {
		t.Errorf("anonymous packages: err = %v, stderr = %q", err, errOut)
	}
	if _, errOut, err := env.run(env.lead, "sessions"); err == nil || !strings.Contains(errOut, "admin access required") {
		t.Errorf("lead sessions: err = %v, stderr = %q", err, errOut)
	}
	if _, errOut, err := env.run(env.admin, "sessions"); err == nil || !strings.Contains(errOut, "SSH server mode") {
		t.Errorf("local sessions: err = %v, stderr = %q", err, errOut)
	}
}

func TestConnectionFailure(t *testing.T) {
	env := newTestEnvWith(t, func(context.Context) (bridge.Store, error) {
		return nil, errors.New("disk on fire")
	})

	_, errOut, err := env.run(env.reader, "packages")
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(errOut, "disk on fire") && !strings.Contains(errOut, "worker") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestUtilityCommands(t *testing.T) {
	env := newTestEnv(t)

	if out := env.mustRun(t, env.lead, "whoami"); !strings.Contains(out, "lead") || !strings.Contains(out, "read-write") {
		t.Errorf("whoami = %q", out)
	}
	if out := env.mustRun(t, env.anon, "whoami", "--format=json"); !strings.Contains(out, `"anonymous": true`) {
		t.Errorf("whoami json = %q", out)
	}
	if out := env.mustRun(t, nil, "version"); out != "vpin-tui test\n" {
		t.Errorf("version = %q", out)
	}
	if out := env.mustRun(t, nil, "help"); !strings.Contains(out, "PIN COMMANDS") {
		t.Error("help is missing the pin commands")
	}
	if out := env.mustRun(t, nil, "help", "set"); !strings.Contains(out, "set <pin-id> <version>") {
		t.Errorf("help set = %q", out)
	}
	if _, errOut, err := env.run(nil, "frobnicate"); err == nil || !strings.Contains(errOut, "Unknown command") {
		t.Errorf("unknown command: err = %v, stderr = %q", err, errOut)
	}
}
