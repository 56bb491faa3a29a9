// Package cli implements the one-shot admin subcommands: status, games
// and history. Each queries a running lobby over its HTTP API and
// renders the result as a table, so operators can inspect a server
// without leaving the shell.
package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/ringleader-project/ringleader/internal/db"
	"github.com/ringleader-project/ringleader/internal/lobby"
)

const defaultAPI = "http://127.0.0.1:7000"

// Run dispatches one admin subcommand and returns the process exit
// code.
func Run(args []string) int {
	if len(args) < 1 {
		printUsage()
		return 2
	}

	cmd := args[0]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	apiURL := fs.String("api", defaultAPI, "base URL of the lobby API")
	count := fs.Int("count", 20, "number of history entries (history only)")
	fs.Parse(args[1:])

	var err error
	switch cmd {
	case "status":
		err = cmdStatus(*apiURL)
	case "games":
		err = cmdGames(*apiURL)
	case "history":
		err = cmdHistory(*apiURL, *count)
	default:
		printUsage()
		return 2
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: ringleader <status|games|history> [--api URL] [--count N]")
}

// fetch GETs one API path and decodes the JSON body.
func fetch(apiURL, path string, out interface{}) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(apiURL + path)
	if err != nil {
		return fmt.Errorf("cannot reach lobby at %s: %w", apiURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

type statusResponse struct {
	OK             bool   `json:"ok"`
	HostName       string `json:"host_name"`
	UptimeSec      int64  `json:"uptime_sec"`
	Clients        int    `json:"clients"`
	ClientCapacity int    `json:"client_capacity"`
	GamesPending   int    `json:"games_pending"`
	GamesActive    int    `json:"games_active"`
	GameCapacity   int    `json:"game_capacity"`
	PortsReserved  int    `json:"ports_reserved"`
	PortsTotal     int    `json:"ports_total"`
}

func cmdStatus(apiURL string) error {
	var st statusResponse
	if err := fetch(apiURL, "/status", &st); err != nil {
		return err
	}

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Field", "Value"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	tw.Append([]string{"Host", st.HostName})
	tw.Append([]string{"Uptime", formatDuration(st.UptimeSec)})
	tw.Append([]string{"Clients", fmt.Sprintf("%d / %d", st.Clients, st.ClientCapacity)})
	tw.Append([]string{"Games pending", fmt.Sprintf("%d", st.GamesPending)})
	tw.Append([]string{"Games active", fmt.Sprintf("%d", st.GamesActive)})
	tw.Append([]string{"Game capacity", fmt.Sprintf("%d", st.GameCapacity)})
	tw.Append([]string{"Relay ports", fmt.Sprintf("%d / %d reserved", st.PortsReserved, st.PortsTotal)})

	tw.Render()
	return nil
}

type gamesResponse struct {
	OK    bool               `json:"ok"`
	Games []lobby.GameDetail `json:"games"`
	Total int                `json:"total"`
}

func cmdGames(apiURL string) error {
	var gr gamesResponse
	if err := fetch(apiURL, "/games", &gr); err != nil {
		return err
	}

	if gr.Total == 0 {
		fmt.Println("No games.")
		return nil
	}

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"ID", "Name", "Players", "Transport", "State", "Port", "Peers", "RX", "TX"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, g := range gr.Games {
		state := "waiting"
		port := "-"
		peers := "-"
		rx, tx := "-", "-"

		if g.Active {
			state = g.RelayState
			port = fmt.Sprintf("%d", g.Port)
			peers = fmt.Sprintf("%d", g.PeersConnected)
			if g.Stats != nil {
				rx = fmt.Sprintf("%d", g.Stats.Rx)
				tx = fmt.Sprintf("%d", g.Stats.Tx)
			}
		}

		tw.Append([]string{
			g.ID,
			g.Name,
			fmt.Sprintf("%d/%d", g.Players, g.Max),
			string(g.Transport),
			state,
			port,
			peers,
			rx,
			tx,
		})
	}

	tw.Render()
	return nil
}

type historyResponse struct {
	OK      bool            `json:"ok"`
	Enabled bool            `json:"enabled"`
	Games   []db.GameRecord `json:"games"`
}

func cmdHistory(apiURL string, count int) error {
	var hr historyResponse
	if err := fetch(apiURL, fmt.Sprintf("/history?count=%d", count), &hr); err != nil {
		return err
	}

	if !hr.Enabled {
		fmt.Println("History is disabled (set history_db in the config file).")
		return nil
	}
	if len(hr.Games) == 0 {
		fmt.Println("No archived games.")
		return nil
	}

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Game", "Name", "Transport", "Port", "Reason", "Ended", "Duration", "RX", "TX"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, r := range hr.Games {
		duration := r.EndedAt.Sub(r.StartedAt)
		tw.Append([]string{
			r.GameID,
			r.Name,
			r.Transport,
			fmt.Sprintf("%d", r.Port),
			r.Reason,
			r.EndedAt.Local().Format("2006-01-02 15:04:05"),
			duration.Truncate(time.Second).String(),
			fmt.Sprintf("%d", r.Rx),
			fmt.Sprintf("%d", r.Tx),
		})
	}

	tw.Render()
	return nil
}

// formatDuration renders whole seconds as 1h2m3s.
func formatDuration(sec int64) string {
	return (time.Duration(sec) * time.Second).String()
}
