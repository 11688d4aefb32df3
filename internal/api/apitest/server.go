// Package apitest provides an in-memory dashboard server for tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/jgoulah/ecobuddy/pkg/models"
)

const sessionCookie = "session"

// Server fakes the dashboard's HTTP endpoints. Set Fail to make every
// /api call answer with that status and FailMessage.
type Server struct {
	*httptest.Server

	Email    string
	Password string

	mu          sync.Mutex
	devices     []models.Device
	usage       map[int]map[string]float64
	nextID      int
	requests    map[string]int
	sessions    map[string]bool
	Fail        int
	FailMessage string
	ChatReply   string
	InsightText string
}

// NewServer starts a fake server accepting email/password
func NewServer(email, password string) *Server {
	s := &Server{
		Email:       email,
		Password:    password,
		usage:       make(map[int]map[string]float64),
		nextID:      1,
		requests:    make(map[string]int),
		sessions:    make(map[string]bool),
		ChatReply:   "Turn off standby devices 🌱",
		InsightText: "Run the washing machine with full loads.",
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// AddDevice seeds a device and returns it with its assigned ID
func (s *Server) AddDevice(name string, t models.ResourceType, rating float64) models.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addDeviceLocked(name, t, rating, t.Unit())
}

// SetUsage seeds an entry for a device
func (s *Server) SetUsage(deviceID int, date string, hours float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.usage[deviceID] == nil {
		s.usage[deviceID] = make(map[string]float64)
	}
	s.usage[deviceID][date] = hours
}

// Requests returns how many requests hit "METHOD /path" style keys
func (s *Server) Requests(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[key]
}

// TotalRequests counts every request received
func (s *Server) TotalRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int
	for _, n := range s.requests {
		total += n
	}
	return total
}

// Session returns a valid session cookie value, for clients that skip Login
func (s *Server) Session() *http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	value := "sess-" + strconv.Itoa(len(s.sessions)+1)
	s.sessions[value] = true
	return &http.Cookie{Name: sessionCookie, Value: value, Path: "/"}
}

func (s *Server) addDeviceLocked(name string, t models.ResourceType, rating float64, unit string) models.Device {
	d := models.Device{ID: s.nextID, Name: name, Type: t, Rating: rating, Unit: unit}
	s.nextID++
	s.devices = append(s.devices, d)
	return d
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	key := r.Method + " /" + parts[0]
	if len(parts) > 1 {
		key += "/" + parts[1]
	}
	if len(parts) > 2 {
		key += "/{id}"
	}
	if len(parts) > 3 {
		key += "/" + parts[3]
	}
	s.requests[key]++

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/login":
		s.handleLogin(w, r)
		return
	case r.Method == http.MethodPost && r.URL.Path == "/signup":
		http.Redirect(w, r, "/", http.StatusFound)
		return
	case r.Method == http.MethodGet && r.URL.Path == "/logout":
		if c, err := r.Cookie(sessionCookie); err == nil {
			delete(s.sessions, c.Value)
		}
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	if c, err := r.Cookie(sessionCookie); err != nil || !s.sessions[c.Value] {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}
	if s.Fail != 0 {
		if s.FailMessage == "" {
			w.WriteHeader(s.Fail)
			return
		}
		writeJSON(w, s.Fail, map[string]string{"error": s.FailMessage})
		return
	}

	switch {
	case r.URL.Path == "/chat_with_gemini" && r.Method == http.MethodPost:
		var req struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No message provided"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"gemini_response": s.ChatReply})
	case r.URL.Path == "/api/insights" && r.Method == http.MethodGet:
		if s.InsightText == "" {
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "No device data available"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "insights": s.InsightText})
	case r.URL.Path == "/api/devices":
		s.handleDevices(w, r)
	case len(parts) >= 3 && parts[0] == "api" && parts[1] == "devices":
		id, err := strconv.Atoi(parts[2])
		if err != nil || s.indexOf(id) < 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Device not found"})
			return
		}
		if len(parts) == 4 && parts[3] == "usage" {
			s.handleUsage(w, r, id)
			return
		}
		if r.Method == http.MethodDelete {
			i := s.indexOf(id)
			s.devices = append(s.devices[:i], s.devices[i+1:]...)
			delete(s.usage, id)
			writeJSON(w, http.StatusOK, map[string]string{"message": "Device deleted"})
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("email") != s.Email || r.PostForm.Get("password") != s.Password {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	value := "sess-" + strconv.Itoa(len(s.sessions)+1)
	s.sessions[value] = true
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: value, Path: "/", HttpOnly: true})
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		devices := make([]models.Device, len(s.devices))
		copy(devices, s.devices)
		writeJSON(w, http.StatusOK, devices)
	case http.MethodPost:
		var req struct {
			Name   string  `json:"name"`
			Type   string  `json:"type"`
			Rating float64 `json:"rating"`
			Unit   string  `json:"unit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
			return
		}
		if req.Name == "" || req.Type == "" || req.Rating <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields"})
			return
		}
		d := s.addDeviceLocked(req.Name, models.ResourceType(req.Type), req.Rating, req.Unit)
		writeJSON(w, http.StatusCreated, map[string]any{"message": "Device added", "device": d})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request, id int) {
	switch r.Method {
	case http.MethodGet:
		data := make(map[string]float64, len(s.usage[id]))
		for date, hours := range s.usage[id] {
			data[date] = hours
		}
		writeJSON(w, http.StatusOK, map[string]any{"usage_data": data})
	case http.MethodPost:
		var req struct {
			Date      string  `json:"date"`
			HoursUsed float64 `json:"hours_used"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Date == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Date and hours are required"})
			return
		}
		if s.usage[id] == nil {
			s.usage[id] = make(map[string]float64)
		}
		s.usage[id][req.Date] = req.HoursUsed
		writeJSON(w, http.StatusOK, map[string]string{"message": "Usage recorded"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) indexOf(id int) int {
	for i, d := range s.devices {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
