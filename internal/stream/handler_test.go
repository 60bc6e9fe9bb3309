package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsmlab/teleop-ingest/internal/config"
	"github.com/nsmlab/teleop-ingest/internal/models"
	"github.com/nsmlab/teleop-ingest/internal/registry"
	"github.com/nsmlab/teleop-ingest/internal/repository"
	"github.com/nsmlab/teleop-ingest/internal/telemetry"
)

type testEnv struct {
	server    *httptest.Server
	robots    *repository.MockRobotRepository
	sessions  *repository.MockSessionRepository
	frames    *repository.MockFrameRepository
	registry  *registry.Registry
	manager   *telemetry.Manager

	mu       sync.Mutex
	created  []*models.TeleopSession
	closed   []uuid.UUID
	statuses map[string][]string
}

func newTestEnv(t *testing.T, bufferSize int, idleTimeout time.Duration) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		robots:   repository.NewMockRobotRepository(),
		sessions: repository.NewMockSessionRepository(),
		frames:   repository.NewMockFrameRepository(),
		registry: registry.New(),
		manager:  telemetry.NewManager(),
		statuses: make(map[string][]string),
	}

	env.sessions.CreateFunc = func(_ context.Context, s *models.TeleopSession) error {
		s.ID = uuid.New()
		env.mu.Lock()
		env.created = append(env.created, s)
		env.mu.Unlock()
		return nil
	}
	env.sessions.CloseFunc = func(_ context.Context, id uuid.UUID, _ time.Time) error {
		env.mu.Lock()
		env.closed = append(env.closed, id)
		env.mu.Unlock()
		return nil
	}
	env.robots.SetStatusFunc = func(_ context.Context, robotID, status string) error {
		env.mu.Lock()
		env.statuses[robotID] = append(env.statuses[robotID], status)
		env.mu.Unlock()
		return nil
	}

	writer := telemetry.NewWriter(env.frames, 1, time.Millisecond, nil)
	handler := NewHandler(env.robots, env.sessions, env.registry, env.manager, writer, config.IngestConfig{
		BufferSize:    bufferSize,
		FlushInterval: time.Minute, // count threshold only, unless a test closes early
		IdleTimeout:   idleTimeout,
		DefaultFPS:    60,
	}, nil)

	router := gin.New()
	router.GET("/ws/log/:robot_id", handler.Serve)
	env.server = httptest.NewServer(router)
	t.Cleanup(env.server.Close)

	return env
}

func (e *testEnv) dial(t *testing.T, robotID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws/log/" + robotID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func (e *testEnv) closedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.closed)
}

func frameJSON(index int64) []byte {
	msg := map[string]interface{}{
		"frame_index": index,
		"timestamp":   float64(1700000000) + float64(index)/60.0,
		"observation": map[string]interface{}{
			"joint_positions":  []float64{0.1, 0.2, 0.3},
			"joint_velocities": []float64{0, 0, 0},
			"gripper":          0.8,
		},
		"action": map[string]interface{}{
			"joint_positions": []float64{0.1, 0.2, 0.4},
			"gripper":         1.0,
		},
	}
	data, _ := json.Marshal(msg)
	return data
}

func TestHandler_FullBufferSingleFlush(t *testing.T) {
	env := newTestEnv(t, 60, 0)

	conn := env.dial(t, "robot_A")
	for i := int64(0); i < 60; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, frameJSON(i)))
	}

	// Exact threshold: exactly one batch of 60 commits
	assert.Eventually(t, func() bool {
		batches := env.frames.SavedBatches()
		return len(batches) == 1 && len(batches[0]) == 60
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return env.closedCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, env.frames.SavedBatches(), 1)
}

func TestHandler_FinalFlushOnDisconnect(t *testing.T) {
	env := newTestEnv(t, 60, 0)

	conn := env.dial(t, "robot_A")
	for i := int64(0); i < 25; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, frameJSON(i)))
	}
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	// No frames stranded in the unflushed buffer
	assert.Eventually(t, func() bool {
		batches := env.frames.SavedBatches()
		return len(batches) == 1 && len(batches[0]) == 25
	}, 2*time.Second, 10*time.Millisecond)

	env.mu.Lock()
	defer env.mu.Unlock()
	require.Len(t, env.created, 1)
	assert.Equal(t, []string{models.RobotStatusOffline}, env.statuses["robot_A"])
}

func TestHandler_MalformedFrameRejectedWithoutClosing(t *testing.T) {
	env := newTestEnv(t, 3, 0)

	conn := env.dial(t, "robot_A")

	// Malformed: negative frame_index
	bad := map[string]interface{}{
		"frame_index": -1,
		"timestamp":   1700000000.0,
		"observation": map[string]interface{}{"joint_positions": []float64{0}, "joint_velocities": []float64{0}, "gripper": 0.0},
		"action":      map[string]interface{}{"joint_positions": []float64{0}, "gripper": 0.0},
	}
	badData, _ := json.Marshal(bad)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, badData))

	// The peer gets a per-message error signal
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply frameError
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)
	assert.Equal(t, int64(-1), reply.FrameIndex)

	// Subsequent valid frames persist in order
	for i := int64(0); i < 3; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, frameJSON(i)))
	}

	assert.Eventually(t, func() bool {
		batches := env.frames.SavedBatches()
		if len(batches) != 1 || len(batches[0]) != 3 {
			return false
		}
		for i, f := range batches[0] {
			if f.FrameIndex != int64(i) {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()
}

func TestHandler_InvalidJSONRejected(t *testing.T) {
	env := newTestEnv(t, 10, 0)

	conn := env.dial(t, "robot_A")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply frameError
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)
	assert.Contains(t, reply.Error, "invalid JSON")

	conn.Close()
	assert.Eventually(t, func() bool { return env.closedCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, env.frames.SavedBatches())
}

func TestHandler_TwoRobotsIndependentSessions(t *testing.T) {
	env := newTestEnv(t, 60, 0)

	connA := env.dial(t, "robot_A")
	connB := env.dial(t, "robot_B")

	var wg sync.WaitGroup
	for _, conn := range []*websocket.Conn{connA, connB} {
		wg.Add(1)
		go func(c *websocket.Conn) {
			defer wg.Done()
			for i := int64(0); i < 60; i++ {
				if err := c.WriteMessage(websocket.TextMessage, frameJSON(i)); err != nil {
					return
				}
			}
		}(conn)
	}
	wg.Wait()

	assert.Eventually(t, func() bool {
		return len(env.frames.SavedBatches()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// No cross-session interleaving: each batch is one session with
	// frame_index 0..59 in order
	for _, batch := range env.frames.SavedBatches() {
		require.Len(t, batch, 60)
		sessionID := batch[0].SessionID
		for i, f := range batch {
			assert.Equal(t, sessionID, f.SessionID)
			assert.Equal(t, int64(i), f.FrameIndex)
		}
	}

	connA.Close()
	connB.Close()
	assert.Eventually(t, func() bool { return env.closedCount() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_RobotStaysOnlineWithSecondSession(t *testing.T) {
	env := newTestEnv(t, 10, 0)

	conn1 := env.dial(t, "robot_A")
	conn2 := env.dial(t, "robot_A")

	// Both registered before one closes
	assert.Eventually(t, func() bool { return env.registry.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	conn1.Close()
	assert.Eventually(t, func() bool { return env.closedCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	env.mu.Lock()
	offlineAfterFirst := len(env.statuses["robot_A"])
	env.mu.Unlock()
	assert.Zero(t, offlineAfterFirst, "robot must stay online while another session is active")

	conn2.Close()
	assert.Eventually(t, func() bool { return env.closedCount() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		env.mu.Lock()
		defer env.mu.Unlock()
		return len(env.statuses["robot_A"]) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_IdleTimeoutClosesSession(t *testing.T) {
	env := newTestEnv(t, 10, 50*time.Millisecond)

	conn := env.dial(t, "robot_A")
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frameJSON(0)))

	// No further traffic: the idle window expires and the server closes the
	// session with a final flush
	assert.Eventually(t, func() bool { return env.closedCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		batches := env.frames.SavedBatches()
		return len(batches) == 1 && len(batches[0]) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_MetricsVisibleWhileActive(t *testing.T) {
	env := newTestEnv(t, 100, 0)

	conn := env.dial(t, "robot_A")
	for i := int64(0); i < 5; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, frameJSON(i)))
	}

	assert.Eventually(t, func() bool {
		all := env.manager.AllMetrics()
		return len(all) == 1 && all[0].TotalFrames == 5 && all[0].RobotID == "robot_A"
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return env.manager.ActiveCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_SessionCreateFailureClosesConnection(t *testing.T) {
	env := newTestEnv(t, 10, 0)
	env.sessions.CreateFunc = func(context.Context, *models.TeleopSession) error {
		return fmt.Errorf("database unavailable")
	}

	conn := env.dial(t, "robot_A")
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "server should close the connection")
}
