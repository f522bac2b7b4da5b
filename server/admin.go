package server

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func roomParam(r *http.Request) string {
	if id := r.URL.Query().Get("room"); id != "" {
		return id
	}
	return DefaultRoom
}

// HandleAdminConfig reads or hot-updates a room's relay settings.
// GET /admin/config?room=harbor-1  returns the current settings
// POST /admin/config?room=harbor-1 updates the fields present in the body
func (m *RoomManager) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	roomID := roomParam(r)
	room := m.GetOrCreateRoom(roomID)

	type cfg struct {
		MaxMovesPerTick  *int     `json:"maxMovesPerTick,omitempty"`
		SimulateDropProb *float64 `json:"simulateDropProb,omitempty"`
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, room.Settings())
	case http.MethodPost:
		var body cfg
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		s := room.Settings()
		if body.MaxMovesPerTick != nil {
			if *body.MaxMovesPerTick < 0 {
				http.Error(w, "maxMovesPerTick must be >= 0", http.StatusBadRequest)
				return
			}
			s.MaxMovesPerTick = *body.MaxMovesPerTick
		}
		if body.SimulateDropProb != nil {
			if p := *body.SimulateDropProb; p < 0 || p > 1 {
				http.Error(w, "simulateDropProb must be in [0,1]", http.StatusBadRequest)
				return
			}
			s.SimulateDropProb = *body.SimulateDropProb
		}
		room.SetSettings(s)
		writeJSON(w, map[string]any{"ok": true})
		Log.Infof("config updated: room=%s maxMovesPerTick=%d drop=%.2f",
			roomID, s.MaxMovesPerTick, s.SimulateDropProb)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics reports one room's counters.
// GET /metrics?room=harbor-1
func (m *RoomManager) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	roomID := roomParam(r)
	room, ok := m.Room(roomID)
	if !ok {
		http.Error(w, "unknown room", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"room":    roomID,
		"tick":    room.TickSeq(),
		"peers":   room.NumPeers(),
		"metrics": room.Metrics().Snapshot(),
	})
}

// HandleRooms lists every live room.
// GET /admin/rooms
func (m *RoomManager) HandleRooms(w http.ResponseWriter, r *http.Request) {
	type roomInfo struct {
		ID    string `json:"id"`
		Peers int    `json:"peers"`
		Tick  int64  `json:"tick"`
	}
	rooms := m.Rooms()
	out := make([]roomInfo, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, roomInfo{ID: room.ID, Peers: room.NumPeers(), Tick: room.TickSeq()})
	}
	writeJSON(w, out)
}

// Routes registers the relay's HTTP surface on mux.
func (m *RoomManager) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", m.HandleWS)
	mux.HandleFunc("/admin/config", m.HandleAdminConfig)
	mux.HandleFunc("/admin/rooms", m.HandleRooms)
	mux.HandleFunc("/metrics", m.HandleMetrics)
}
