package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"nightfall_dashboard/internal/models"
	"nightfall_dashboard/internal/service"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastGenUsername    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(_ context.Context, username, _ string) (int, error) {
	m.lastSignUpUsername = username
	return m.signUpID, m.signUpErr
}

func (m *mockAuth) GenerateToken(_ context.Context, username, _ string) (string, error) {
	m.lastGenUsername = username
	return m.genTokenToken, m.genTokenErr
}

func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockDashboard struct {
	mu sync.Mutex

	snapshot  models.Snapshot
	connErr   error
	sendErr   error
	startErr  error
	retryErr  error
	frame     []byte
	frameErr  error
	alerts    []models.Alert
	dismissOK bool

	connectCalls    int
	reconnectCalls  int
	disconnectCalls int
	stopCalls       int
	sent            []models.MotorCommand
	startedIP       *string
	dismissedID     string
}

func (m *mockDashboard) Snapshot() models.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

func (m *mockDashboard) LinkState() models.ConnectionState { return m.Snapshot().Connection }

func (m *mockDashboard) Connect() error {
	m.connectCalls++
	return m.connErr
}

func (m *mockDashboard) Reconnect() error {
	m.reconnectCalls++
	return m.connErr
}

func (m *mockDashboard) Disconnect() { m.disconnectCalls++ }

func (m *mockDashboard) SendCommand(cmd models.MotorCommand) error {
	m.sent = append(m.sent, cmd)
	return m.sendErr
}

func (m *mockDashboard) VideoStatus() models.VideoStatus { return m.Snapshot().Video }

func (m *mockDashboard) StartVideo(ip string) error {
	m.startedIP = &ip
	return m.startErr
}

func (m *mockDashboard) StopVideo()        { m.stopCalls++ }
func (m *mockDashboard) RetryVideo() error { return m.retryErr }

func (m *mockDashboard) Frame() ([]byte, bool, error) {
	return m.frame, len(m.frame) > 0, m.frameErr
}

func (m *mockDashboard) Alerts() []models.Alert { return m.alerts }

func (m *mockDashboard) DismissAlert(id string) bool {
	m.dismissedID = id
	return m.dismissOK
}

type mockEventLog struct {
	resp     []models.LinkEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(_ context.Context, f service.LogFilter) ([]models.LinkEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

type mockHistory struct {
	resp      []models.TelemetrySample
	err       error
	lastLimit int
}

func (m *mockHistory) List(_ context.Context, limit int) ([]models.TelemetrySample, error) {
	m.lastLimit = limit
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(s, nil, nil)
	return h.InitRoutes()
}

// newAuthedService returns a service whose token check always passes.
func newAuthedService(d *mockDashboard) *service.Service {
	return &service.Service{
		Authorization: &mockAuth{parseID: 1},
		Dashboard:     d,
		EventLog:      &mockEventLog{},
		History:       &mockHistory{},
	}
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
