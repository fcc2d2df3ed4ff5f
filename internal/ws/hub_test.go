package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, tenantID uuid.UUID) *Client {
	return &Client{
		hub:      hub,
		tenantID: tenantID,
		send:     make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	tenantID := uuid.New()
	client := mockClient(hub, tenantID)

	// Register client
	hub.register <- client

	// Give hub time to process
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[tenantID] == nil {
		t.Fatal("tenant room not created")
	}
	if !hub.rooms[tenantID][client] {
		t.Fatal("client not registered in tenant room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	tenantID := uuid.New()
	client := mockClient(hub, tenantID)

	// Register client
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	// Unregister client
	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	// Room should be cleaned up when empty
	if hub.rooms[tenantID] != nil {
		t.Fatal("tenant room not cleaned up after last client unregistered")
	}
}

func TestBroadcastToSingleTenant(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	tenant1 := uuid.New()
	tenant2 := uuid.New()

	client1 := mockClient(hub, tenant1)
	client2 := mockClient(hub, tenant2)

	// Register both clients
	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	// Broadcast to tenant1 only
	testPayload := json.RawMessage(`{"orderId":"test-123"}`)
	event := Event{
		Type:    "order.created",
		Payload: testPayload,
	}
	hub.BroadcastToTenant(tenant1, event)

	// Check client1 receives the message
	select {
	case msg := <-client1.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != "order.created" {
			t.Errorf("expected type 'order.created', got '%s'", received.Type)
		}
		if string(received.Payload) != string(testPayload) {
			t.Errorf("expected payload '%s', got '%s'", testPayload, received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client1 did not receive message")
	}

	// Check client2 does NOT receive the message
	select {
	case <-client2.send:
		t.Fatal("client2 should not have received message for different tenant")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message received
	}
}

func TestBroadcastToMultipleClientsInSameTenant(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	tenantID := uuid.New()
	client1 := mockClient(hub, tenantID)
	client2 := mockClient(hub, tenantID)
	client3 := mockClient(hub, tenantID)

	// Register all clients to same tenant
	hub.register <- client1
	hub.register <- client2
	hub.register <- client3
	time.Sleep(10 * time.Millisecond)

	// Broadcast event
	testPayload := json.RawMessage(`{"status":"READY"}`)
	event := Event{
		Type:    "order.status_changed",
		Payload: testPayload,
	}
	hub.BroadcastToTenant(tenantID, event)

	// All three clients should receive the message
	clients := []*Client{client1, client2, client3}
	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != "order.status_changed" {
				t.Errorf("client%d: expected type 'order.status_changed', got '%s'", i+1, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestNewEventMarshalsPayload(t *testing.T) {
	payload := map[string]string{"orderId": "abc", "status": "COOKING"}
	event := NewEvent("order.status_changed", payload)

	if event.Type != "order.status_changed" {
		t.Errorf("wrong event type: %s", event.Type)
	}

	var decoded map[string]string
	if err := json.Unmarshal(event.Payload, &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if decoded["orderId"] != "abc" || decoded["status"] != "COOKING" {
		t.Errorf("payload round-trip mismatch: %v", decoded)
	}
}

func TestHubMultipleTenantsIsolation(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	tenant1 := uuid.New()
	tenant2 := uuid.New()
	tenant3 := uuid.New()

	// Create 2 clients per tenant
	clients := map[uuid.UUID][]*Client{
		tenant1: {mockClient(hub, tenant1), mockClient(hub, tenant1)},
		tenant2: {mockClient(hub, tenant2), mockClient(hub, tenant2)},
		tenant3: {mockClient(hub, tenant3), mockClient(hub, tenant3)},
	}

	// Register all clients
	for _, clientList := range clients {
		for _, client := range clientList {
			hub.register <- client
		}
	}
	time.Sleep(10 * time.Millisecond)

	// Broadcast to tenant2 only
	event := Event{
		Type:    "order.stagnant",
		Payload: json.RawMessage(`{"tenantId":"` + tenant2.String() + `"}`),
	}
	hub.BroadcastToTenant(tenant2, event)

	// Only tenant2 clients should receive
	for tenantID, clientList := range clients {
		for i, client := range clientList {
			select {
			case msg := <-client.send:
				if tenantID != tenant2 {
					t.Fatalf("tenant %s client %d should not receive message", tenantID, i)
				}
				var received Event
				if err := json.Unmarshal(msg, &received); err != nil {
					t.Fatalf("unmarshal error: %v", err)
				}
				if received.Type != "order.stagnant" {
					t.Errorf("wrong event type: %s", received.Type)
				}
			case <-time.After(50 * time.Millisecond):
				if tenantID == tenant2 {
					t.Fatalf("tenant2 client %d should have received message", i)
				}
				// Expected for other tenants
			}
		}
	}
}

func TestHubCleanupEmptyRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	tenantID := uuid.New()
	client1 := mockClient(hub, tenantID)
	client2 := mockClient(hub, tenantID)

	// Register both clients
	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[tenantID]) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(hub.rooms[tenantID]))
	}
	hub.mu.RUnlock()

	// Unregister first client
	hub.unregister <- client1
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[tenantID]) != 1 {
		t.Fatalf("expected 1 client after first unregister, got %d", len(hub.rooms[tenantID]))
	}
	hub.mu.RUnlock()

	// Unregister second client
	hub.unregister <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if hub.rooms[tenantID] != nil {
		t.Fatal("room should be deleted when last client unregisters")
	}
	hub.mu.RUnlock()
}

func TestBroadcastToNonExistentTenant(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Create a client for tenant1
	tenant1 := uuid.New()
	client1 := mockClient(hub, tenant1)
	hub.register <- client1
	time.Sleep(10 * time.Millisecond)

	// Broadcast to tenant2 (doesn't exist)
	tenant2 := uuid.New()
	event := Event{
		Type:    "order.created",
		Payload: json.RawMessage(`{"test":"data"}`),
	}
	hub.BroadcastToTenant(tenant2, event)

	// client1 should NOT receive anything
	select {
	case <-client1.send:
		t.Fatal("client should not receive message for different tenant")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message
	}
}
