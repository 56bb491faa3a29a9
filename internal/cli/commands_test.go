package cli

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newStubAPI(t *testing.T) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/status":
			w.Write([]byte(`{"ok":true,"host_name":"lobby.test","uptime_sec":90,
				"clients":3,"client_capacity":64,"games_pending":1,"games_active":1,
				"game_capacity":5,"ports_reserved":1,"ports_total":16}`))
		case "/games":
			w.Write([]byte(`{"ok":true,"total":2,"games":[
				{"id":"AAAA1111","name":"duel","players":2,"max":2,"active":true,
				 "transport":"udp","members":["alice","bob"],"port":10001,
				 "relay_state":"ready","peers_connected":2,
				 "stats":{"rx":10,"tx":10,"dup_tx":0,"register":2,"drop":0,"unknown":0,
				          "seq":{"init":2,"in_order":8,"ahead":0,"behind":0,"dup":0,
				                 "short":0,"gap_total":0,"gap_max":0}}},
				{"id":"BBBB2222","name":"open","players":1,"max":4,"active":false,
				 "transport":"tcp","members":["carol"]}]}`))
		case "/history":
			assert.Equal(t, "3", r.URL.Query().Get("count"))
			w.Write([]byte(`{"ok":true,"enabled":true,"games":[
				{"id":1,"game_id":"CCCC3333","name":"old","transport":"udp","port":10002,
				 "max_players":2,"created_at":"2026-08-25T10:00:00Z",
				 "started_at":"2026-08-25T10:01:00Z","ended_at":"2026-08-25T10:31:00Z",
				 "reason":"idle_timeout","rx":500,"tx":500,"dup_tx":0,"register":2,
				 "drop":0,"unknown":0}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestRunSubcommands(t *testing.T) {
	ts := newStubAPI(t)

	assert.Equal(t, 0, Run([]string{"status", "--api", ts.URL}))
	assert.Equal(t, 0, Run([]string{"games", "--api", ts.URL}))
	assert.Equal(t, 0, Run([]string{"history", "--api", ts.URL, "--count", "3"}))
}

func TestRunUnknownCommand(t *testing.T) {
	assert.Equal(t, 2, Run([]string{"frobnicate"}))
	assert.Equal(t, 2, Run(nil))
}

func TestRunUnreachableAPI(t *testing.T) {
	assert.Equal(t, 1, Run([]string{"status", "--api", "http://127.0.0.1:1"}))
}
