package service

import (
	"context"

	"nightfall_dashboard/internal/config"
	"nightfall_dashboard/internal/models"
	"nightfall_dashboard/internal/repository"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Dashboard is the operator's view of and control over the robot.
type Dashboard interface {
	Snapshot() models.Snapshot
	LinkState() models.ConnectionState
	Connect() error
	Reconnect() error
	Disconnect()
	SendCommand(cmd models.MotorCommand) error

	VideoStatus() models.VideoStatus
	StartVideo(ip string) error
	StopVideo()
	RetryVideo() error
	Frame() ([]byte, bool, error)

	Alerts() []models.Alert
	DismissAlert(id string) bool
}

// EventLog exposes the persisted link events with filtering.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.LinkEvent, error)
}

// History exposes the recorded telemetry samples.
type History interface {
	List(ctx context.Context, limit int) ([]models.TelemetrySample, error)
}

// Service aggregates everything the HTTP layer needs.
type Service struct {
	Dashboard
	EventLog
	History
	Authorization
}

// NewService wires the repositories into the services around an already
// built dashboard and history recorder.
func NewService(repos *repository.Repository, dash Dashboard, history History, auth config.Auth) *Service {
	return &Service{
		Dashboard:     dash,
		EventLog:      NewEventLogService(repos.EventRepo),
		History:       history,
		Authorization: NewAuthService(repos.Auth, auth),
	}
}
