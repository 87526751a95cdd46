package session

import (
	"net"
	"sync"
	"testing"
	"time"
)

// MockConnection 测试用连接
type MockConnection struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func (m *MockConnection) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, data)
	return nil
}
func (m *MockConnection) ReadMessage() ([]byte, error) { return nil, nil }
func (m *MockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
func (m *MockConnection) RemoteAddr() net.Addr                { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration) {}

func TestManager_AddGetRemove(t *testing.T) {
	manager := NewManager()
	sess := NewSession("s1", &MockConnection{})

	manager.Add(sess)
	got, exists := manager.Get("s1")
	if !exists || got != sess {
		t.Fatal("added session should be retrievable")
	}
	if manager.Count() != 1 {
		t.Errorf("expected count 1, got %d", manager.Count())
	}

	manager.Remove("s1")
	if _, exists := manager.Get("s1"); exists {
		t.Fatal("removed session should be gone")
	}
	if manager.Count() != 0 {
		t.Errorf("expected count 0, got %d", manager.Count())
	}
}

func TestManager_GetByGameID(t *testing.T) {
	manager := NewManager()

	s1 := NewSession("s1", &MockConnection{})
	s2 := NewSession("s2", &MockConnection{})
	s3 := NewSession("s3", &MockConnection{})
	s1.Subscribe("G1")
	s2.Subscribe("G1")
	s3.Subscribe("G2")
	manager.Add(s1)
	manager.Add(s2)
	manager.Add(s3)

	subscribers := manager.GetByGameID("G1")
	if len(subscribers) != 2 {
		t.Fatalf("expected 2 subscribers for G1, got %d", len(subscribers))
	}
	for _, s := range subscribers {
		if s.GameID() != "G1" {
			t.Errorf("session %s is not subscribed to G1", s.GetID())
		}
	}

	if got := manager.GetByGameID("G3"); len(got) != 0 {
		t.Errorf("expected no subscribers for G3, got %d", len(got))
	}
}

func TestManager_GetByPlayerID(t *testing.T) {
	manager := NewManager()

	s1 := NewSession("s1", &MockConnection{})
	s1.PlayerID = "alice"
	s2 := NewSession("s2", &MockConnection{})
	s2.PlayerID = "alice"
	s3 := NewSession("s3", &MockConnection{})
	s3.PlayerID = "bob"
	manager.Add(s1)
	manager.Add(s2)
	manager.Add(s3)

	if got := manager.GetByPlayerID("alice"); len(got) != 2 {
		t.Errorf("expected 2 sessions for alice, got %d", len(got))
	}
	if got := manager.GetByPlayerID("carol"); len(got) != 0 {
		t.Errorf("expected 0 sessions for carol, got %d", len(got))
	}
}

func TestSession_SendTouchesActivity(t *testing.T) {
	sess := NewSession("s1", &MockConnection{})
	before := sess.LastActive()

	time.Sleep(5 * time.Millisecond)
	if err := sess.Send([]byte("ping")); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}

	if !sess.LastActive().After(before) {
		t.Error("Send should refresh the activity timestamp")
	}
}

func TestManager_IdleSince(t *testing.T) {
	manager := NewManager()

	idle := NewSession("idle", &MockConnection{})
	manager.Add(idle)

	time.Sleep(5 * time.Millisecond)
	cutoff := time.Now()

	active := NewSession("active", &MockConnection{})
	manager.Add(active)

	got := manager.IdleSince(cutoff)
	if len(got) != 1 || got[0].GetID() != "idle" {
		t.Fatalf("expected only the idle session, got %d sessions", len(got))
	}

	idle.Touch()
	if got := manager.IdleSince(cutoff); len(got) != 0 {
		t.Errorf("touched session should no longer be idle, got %d", len(got))
	}
}

func TestSession_Close(t *testing.T) {
	conn := &MockConnection{}
	sess := NewSession("s1", conn)

	if err := sess.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if !conn.closed {
		t.Error("Close should close the underlying connection")
	}
}
