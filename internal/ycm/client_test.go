package ycm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

func eligibleModes(modes ...string) ModeFilter {
	set := make(map[string]bool, len(modes))
	for _, m := range modes {
		set[m] = true
	}
	return func(mode string) bool { return set[mode] }
}

func TestBuildBaseRequest(t *testing.T) {
	client := NewCompletionClient(nil, WithModeFilter(eligibleModes("c++-mode", "python-mode")))

	st := EditorState{
		Filepath: "/tmp/a.cpp",
		Line:     1,
		Column:   13,
		Buffers: []Buffer{
			{Path: "/tmp/a.cpp", Contents: "int main(){}", Mode: "c++-mode"},
			{Path: "/tmp/b.py", Contents: "import os", Mode: "python-mode"},
			{Path: "/tmp/notes.txt", Contents: "todo", Mode: "text-mode"},
		},
	}

	doc := client.BuildBaseRequest(st)

	if doc.LineNum != 1 || doc.ColumnNum != 13 {
		t.Errorf("position = %d:%d, want 1:13", doc.LineNum, doc.ColumnNum)
	}
	if doc.Filepath != "/tmp/a.cpp" {
		t.Errorf("filepath = %q, want /tmp/a.cpp", doc.Filepath)
	}

	want := FileData{Contents: "int main(){}", Filetypes: []string{"cpp"}}
	if got := doc.FileData["/tmp/a.cpp"]; !reflect.DeepEqual(got, want) {
		t.Errorf("file_data[/tmp/a.cpp] = %+v, want %+v", got, want)
	}
	if got := doc.FileData["/tmp/b.py"]; !reflect.DeepEqual(got, FileData{Contents: "import os", Filetypes: []string{"python"}}) {
		t.Errorf("file_data[/tmp/b.py] = %+v", got)
	}

	// Ineligible buffers are excluded.
	if _, ok := doc.FileData["/tmp/notes.txt"]; ok {
		t.Error("ineligible buffer included in file_data")
	}
}

func TestFiletypesForMode(t *testing.T) {
	tests := []struct {
		mode string
		want string
	}{
		{"js-mode", "javascript"},
		{"js2-mode", "javascript"},
		{"javascript-mode", "javascript"},
		{"python-mode", "python"},
		{"c++-mode", "cpp"},
		{"cc-mode", "cpp"},
		{"lisp-mode", "unknown"},
		{"", "unknown"},
	}

	for _, tt := range tests {
		got := FiletypesForMode(tt.mode)
		if len(got) != 1 || got[0] != tt.want {
			t.Errorf("FiletypesForMode(%q) = %v, want [%s]", tt.mode, got, tt.want)
		}
	}
}

func TestParseCandidates(t *testing.T) {
	result := gjson.Parse(`{
		"completions": [
			{"insertion_text": "foo", "kind": "FUNCTION"},
			{"insertion_text": "bar", "kind": "CLASS", "menu_text": "bar()", "extra_menu_info": "int", "detailed_info": "bar does things"},
			{"insertion_text": "baz"}
		]
	}`)

	candidates := parseCandidates(result)
	if len(candidates) != 3 {
		t.Fatalf("got %d candidates, want 3", len(candidates))
	}

	if candidates[0].InsertionText != "foo" || candidates[0].Kind != "FUNCTION" {
		t.Errorf("candidate 0 = %+v", candidates[0])
	}

	// Daemon order is preserved.
	order := []string{"foo", "bar", "baz"}
	for i, want := range order {
		if candidates[i].InsertionText != want {
			t.Errorf("candidate %d = %q, want %q", i, candidates[i].InsertionText, want)
		}
	}

	if candidates[1].MenuText != "bar()" || candidates[1].ExtraMenuInfo != "int" || candidates[1].DetailedInfo != "bar does things" {
		t.Errorf("candidate 1 = %+v", candidates[1])
	}

	// Missing fields parse to empty strings.
	if candidates[2].Kind != "" {
		t.Errorf("candidate 2 kind = %q, want empty", candidates[2].Kind)
	}
}

func TestParseCandidates_Malformed(t *testing.T) {
	if got := parseCandidates(gjson.Parse(`{}`)); got != nil {
		t.Errorf("no completions key: got %v, want nil", got)
	}
	if got := parseCandidates(gjson.Parse(`{"completions": "nope"}`)); got != nil {
		t.Errorf("non-array completions: got %v, want nil", got)
	}
	if got := parseCandidates(gjson.Parse(`{"completions": []}`)); len(got) != 0 {
		t.Errorf("empty completions: got %v, want empty", got)
	}
}

func TestRequestCompletions(t *testing.T) {
	d := newFakeDaemon(t)
	session := startSession(t, d)

	var gotBody []byte
	d.setHandler(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"completions": [
			{"insertion_text": "foo", "kind": "FUNCTION"},
			{"insertion_text": "bar", "kind": "VARIABLE"}
		]}`)
	})

	client := NewCompletionClient(session, WithModeFilter(eligibleModes("c++-mode")))
	st := EditorState{
		Filepath: "/tmp/a.cpp",
		Line:     2,
		Column:   5,
		Buffers:  []Buffer{{Path: "/tmp/a.cpp", Contents: "int main(){}", Mode: "c++-mode"}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	candidates, err := client.RequestCompletions(ctx, st)
	if err != nil {
		t.Fatalf("request completions: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}
	if candidates[0].InsertionText != "foo" || candidates[0].Kind != "FUNCTION" {
		t.Errorf("candidate 0 = %+v", candidates[0])
	}
	if candidates[1].InsertionText != "bar" {
		t.Errorf("candidate 1 = %+v", candidates[1])
	}

	// The wire body carries the buffer snapshot.
	body := gjson.ParseBytes(gotBody)
	if got := body.Get("file_data./tmp/a\\.cpp.contents").String(); got != "int main(){}" {
		t.Errorf("wire contents = %q", got)
	}
	if got := body.Get("line_num").Int(); got != 2 {
		t.Errorf("wire line_num = %d, want 2", got)
	}
}

func TestNotifyFileReadyToParse_DropsOverlapping(t *testing.T) {
	d := newFakeDaemon(t)
	session := startSession(t, d)

	var received atomic.Int32
	release := make(chan struct{})
	d.setHandler(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "{}")
	})

	client := NewCompletionClient(session)
	st := EditorState{
		Filepath: "/tmp/a.py",
		Line:     1,
		Column:   1,
		Buffers:  []Buffer{{Path: "/tmp/a.py", Contents: "x = 1", Mode: "python-mode"}},
	}

	client.NotifyFileReadyToParse(st)

	// Wait until the first send is in flight at the server.
	deadline := time.Now().Add(5 * time.Second)
	for received.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first notification never reached the daemon")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// While the first is unacknowledged, further sends for the same
	// buffer are dropped, not queued.
	client.NotifyFileReadyToParse(st)
	client.NotifyFileReadyToParse(st)
	time.Sleep(100 * time.Millisecond)

	if got := received.Load(); got != 1 {
		t.Errorf("daemon received %d notifications, want 1", got)
	}

	close(release)

	// After acknowledgement the next notification goes through.
	deadline = time.Now().Add(5 * time.Second)
	for {
		client.NotifyFileReadyToParse(st)
		if received.Load() >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("notification after acknowledgement never sent")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestNotifyEvent_WireFormat(t *testing.T) {
	d := newFakeDaemon(t)
	session := startSession(t, d)

	bodies := make(chan gjson.Result, 1)
	d.setHandler(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies <- gjson.ParseBytes(body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "{}")
	})

	client := NewCompletionClient(session)
	client.NotifyBufferVisit(EditorState{
		Filepath: "/tmp/a.py",
		Line:     3,
		Column:   4,
		Buffers:  []Buffer{{Path: "/tmp/a.py", Contents: "x = 1", Mode: "python-mode"}},
	})

	select {
	case body := <-bodies:
		if got := body.Get("event_name").String(); got != "BufferVisit" {
			t.Errorf("event_name = %q, want BufferVisit", got)
		}
		if got := body.Get("filepath").String(); got != "/tmp/a.py" {
			t.Errorf("filepath = %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event notification never sent")
	}
}

func TestLoadExtraConfig(t *testing.T) {
	d := newFakeDaemon(t)
	session := startSession(t, d)

	var gotPath, gotFilepath string
	d.setHandler(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotPath = r.URL.Path
		gotFilepath = gjson.GetBytes(body, "filepath").String()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "{}")
	})

	client := NewCompletionClient(session)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.LoadExtraConfig(ctx, "/project/.ycm_extra_conf.py"); err != nil {
		t.Fatalf("load extra config: %v", err)
	}
	if gotPath != "/load_extra_conf_file" {
		t.Errorf("path = %q, want /load_extra_conf_file", gotPath)
	}
	if gotFilepath != "/project/.ycm_extra_conf.py" {
		t.Errorf("filepath = %q", gotFilepath)
	}
}

func TestIsHealthy(t *testing.T) {
	d := newFakeDaemon(t)
	session := startSession(t, d)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := NewCompletionClient(session)
	if !client.IsHealthy(ctx) {
		t.Error("expected healthy daemon")
	}

	d.setHandler(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	if client.IsHealthy(ctx) {
		t.Error("expected unhealthy daemon")
	}
}
