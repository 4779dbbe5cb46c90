package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"minimal-signal/configs"
	"minimal-signal/crypto/dh25519"
	"minimal-signal/protocol/x3dh/alice"
)

// HandlePostKeys registers a user's signed prekey bundle, plus any one-time
// prekeys it carries, which are appended to that user's FIFO one-time-prekey
// queue rather than replacing it — repeated publishes top the queue back up.
func (s *Server) HandlePostKeys(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	if userID == "" {
		http.Error(w, "missing userID", http.StatusBadRequest)
		return
	}

	var bundle alice.BobPublicPrekeyBundle
	if err := json.NewDecoder(r.Body).Decode(&bundle); err != nil {
		s.logger.Errorf("Error decoding prekey bundle for user %s: %v", userID, err)
		http.Error(w, "invalid prekey bundle", http.StatusBadRequest)
		return
	}

	if err := bundle.Verify(); err != nil {
		s.logger.Errorf("Rejected prekey bundle for user %s: %v", userID, err)
		http.Error(w, "invalid prekey signature", http.StatusBadRequest)
		return
	}

	// Store the long-lived identity/signed-prekey fields without the
	// one-time prekey; one-time prekeys live in their own FIFO queue.
	stored := bundle
	stored.OneTimePrekey = nil
	storedJSON, err := json.Marshal(stored)
	if err != nil {
		s.logger.Errorf("Error marshalling prekey bundle for user %s: %v", userID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := s.redisClient.Set(s.ctx, fmt.Sprintf(configs.ServerPrekeyBundleKey, userID), storedJSON, 0).Err(); err != nil {
		s.logger.Errorf("Error storing prekey bundle for user %s: %v", userID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if bundle.OneTimePrekey != nil {
		otkJSON, err := json.Marshal(bundle.OneTimePrekey)
		if err != nil {
			s.logger.Errorf("Error marshalling one-time prekey for user %s: %v", userID, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if err := s.redisClient.RPush(s.ctx, fmt.Sprintf(configs.ServerOneTimePrekeysKey, userID), otkJSON).Err(); err != nil {
			s.logger.Errorf("Error queuing one-time prekey for user %s: %v", userID, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	s.logger.Infof("Stored prekey bundle for user %s", userID)
	w.WriteHeader(http.StatusOK)
}

// HandleGetKeys returns a user's prekey bundle, popping one one-time prekey
// from the front of their queue if any remain. The field is omitted from the
// JSON response once the queue is exhausted (it is tagged omitempty).
func (s *Server) HandleGetKeys(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	if userID == "" {
		http.Error(w, "missing userID", http.StatusBadRequest)
		return
	}

	bundle, err := s.fetchPrekeyBundle(userID)
	if err != nil {
		s.logger.Errorf("Error fetching prekey bundle for user %s: %v", userID, err)
		http.Error(w, "no prekey bundle for user", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(bundle); err != nil {
		s.logger.Errorf("Error encoding prekey bundle for user %s: %v", userID, err)
	}
}

func (s *Server) fetchPrekeyBundle(userID string) (*alice.BobPublicPrekeyBundle, error) {
	storedJSON, err := s.redisClient.Get(s.ctx, fmt.Sprintf(configs.ServerPrekeyBundleKey, userID)).Bytes()
	if err != nil {
		return nil, fmt.Errorf("no registered prekey bundle: %w", err)
	}

	var bundle alice.BobPublicPrekeyBundle
	if err := json.Unmarshal(storedJSON, &bundle); err != nil {
		return nil, fmt.Errorf("corrupt stored prekey bundle: %w", err)
	}

	otkJSON, err := s.redisClient.LPop(s.ctx, fmt.Sprintf(configs.ServerOneTimePrekeysKey, userID)).Bytes()
	if err == nil {
		var otk dh25519.PublicKey
		if err := json.Unmarshal(otkJSON, &otk); err != nil {
			return nil, fmt.Errorf("corrupt queued one-time prekey: %w", err)
		}
		bundle.OneTimePrekey = &otk
	}

	return &bundle, nil
}
