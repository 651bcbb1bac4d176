package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"nightfall_dashboard/internal/models"
)

const defaultServer = "http://127.0.0.1:8080"

type statusOptions struct {
	server  string
	token   string
	timeout time.Duration
}

type statusReport struct {
	Health string
	Link   models.ConnectionState

	// filled only with a token
	Stats     *models.ConnectionStats
	Telemetry *models.TelemetryRecord
	Video     *models.VideoStatus
}

func newStatusCommand() *cobra.Command {
	o := &statusOptions{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the state of a running dashboard service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
			defer cancel()
			rep, err := fetchStatus(ctx, http.DefaultClient, o.server, o.token)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStatus(rep))
			return nil
		},
	}
	cmd.Flags().StringVar(&o.server, "server", defaultServer, "base URL of the dashboard service")
	cmd.Flags().StringVar(&o.token, "token", "", "bearer token for the protected API")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}

func fetchStatus(ctx context.Context, client *http.Client, base, token string) (statusReport, error) {
	base = strings.TrimRight(base, "/")
	var rep statusReport

	var health struct {
		Status string                 `json:"status"`
		Link   models.ConnectionState `json:"link"`
	}
	if err := getJSON(ctx, client, base+"/health", "", &health); err != nil {
		return rep, err
	}
	rep.Health, rep.Link = health.Status, health.Link
	if token == "" {
		return rep, nil
	}

	var link struct {
		Stats     models.ConnectionStats `json:"stats"`
		Telemetry models.TelemetryRecord `json:"telemetry"`
	}
	if err := getJSON(ctx, client, base+"/api/v1/link/state", token, &link); err != nil {
		return rep, err
	}
	var video models.VideoStatus
	if err := getJSON(ctx, client, base+"/api/v1/video/state", token, &video); err != nil {
		return rep, err
	}
	rep.Stats, rep.Telemetry, rep.Video = &link.Stats, &link.Telemetry, &video
	return rep, nil
}

func getJSON(ctx context.Context, client *http.Client, url, token string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: %s: %s", url, resp.Status, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func renderStatus(rep statusReport) string {
	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow("FIELD", "VALUE")
	table.AddRow("service", rep.Health)
	table.AddRow("link", rep.Link)
	if rep.Stats != nil {
		table.AddRow("messages sent", rep.Stats.MessagesSent)
		table.AddRow("messages received", rep.Stats.MessagesReceived)
		table.AddRow("malformed", rep.Stats.MalformedMessages)
		table.AddRow("avg latency", fmt.Sprintf("%d ms", rep.Stats.AverageLatencyMs))
		table.AddRow("reconnect attempts", rep.Stats.ReconnectAttempts)
	}
	if rep.Telemetry != nil {
		t := rep.Telemetry
		table.AddRow("distance", fmt.Sprintf("%.1f cm", t.DistanceCm))
		table.AddRow("gas", t.GasLevel)
		table.AddRow("battery", fmt.Sprintf("%.2f V", t.BatteryVoltage))
		table.AddRow("back status", t.BackStatus)
		table.AddRow("front online", t.FrontOnline)
		table.AddRow("emergency", t.EmergencyActive)
	}
	if rep.Video != nil {
		v := rep.Video
		state := string(v.State)
		if v.Mode != models.VideoModeNone {
			state += " (" + string(v.Mode) + ")"
		}
		table.AddRow("video", state)
		table.AddRow("video fps", v.FPS)
		if v.Error != "" {
			table.AddRow("video error", v.Error)
		}
	}
	return table.String()
}
