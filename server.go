package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"identity-verify/apierrors"
	"identity-verify/attestation"
	"identity-verify/face"
	"identity-verify/images"
	"identity-verify/liveness"
	"identity-verify/models"
	"identity-verify/mrz"
	"identity-verify/phase"
	"identity-verify/session"
)

const ErrorInternal apierrors.Kind = "internal"
const errMethodNotAllowed apierrors.Kind = "method_not_allowed"

// ServerConfig is the HTTP listener's own configuration, distinct from
// the top-level Config that also carries storage and model settings.
type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	UseTls         bool   `json:"use_tls,omitempty"`
	TlsPrivKeyPath string `json:"tls_priv_key_path,omitempty"`
	TlsCertPath    string `json:"tls_cert_path,omitempty"`
}

// ServerState holds the collaborators shared across every session:
// the persistent store and the (comparatively expensive to load) face
// detector, plus a per-session phase controller cache.
type ServerState struct {
	store     session.Store
	detector  face.Detector
	extractor *mrz.Extractor

	mu          sync.Mutex
	controllers map[string]*phase.Controller
	challenges  map[string]*liveness.Challenge
}

// NewServerState wires the pipeline's collaborators together.
func NewServerState(store session.Store, detector face.Detector, ocrDPI int) *ServerState {
	extractor := mrz.NewExtractor()
	if ocrDPI > 0 {
		extractor.Recognizer = mrz.NewTesseractRecognizer(ocrDPI)
	}
	return &ServerState{
		store:       store,
		detector:    detector,
		extractor:   extractor,
		controllers: make(map[string]*phase.Controller),
		challenges:  make(map[string]*liveness.Challenge),
	}
}

func (s *ServerState) controller(sessionID string) *phase.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.controllers[sessionID]
	if !ok {
		if state, found, err := s.store.Load(sessionID); err == nil && found {
			c = phase.Restore(state)
		} else {
			c = phase.New(sessionID)
		}
		s.controllers[sessionID] = c
	}
	return c
}

// challenge returns the session's pose-capture challenge, creating one
// on first use. Reusing the same Challenge across a session's retries
// means a stray double-submit from the client is rejected by the
// running guard instead of racing two captures against one detector.
func (s *ServerState) challenge(sessionID string) *liveness.Challenge {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[sessionID]
	if !ok {
		ch = &liveness.Challenge{Detector: s.detector}
		s.challenges[sessionID] = ch
	}
	return ch
}

func (s *ServerState) persist(sessionID string) {
	s.mu.Lock()
	c, ok := s.controllers[sessionID]
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := s.store.Save(sessionID, c.State()); err != nil {
		slog.Error("failed to persist session state", "session_id", sessionID, "error", err)
	}
}

type Server struct {
	server *http.Server
	config ServerConfig
}

func (s *Server) ListenAndServe() error {
	if s.config.UseTls {
		slog.Info("starting server with tls", "host", s.config.Host, "port", s.config.Port)
		return s.server.ListenAndServeTLS(s.config.TlsCertPath, s.config.TlsPrivKeyPath)
	}
	slog.Info("starting server without tls", "host", s.config.Host, "port", s.config.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Stop() error {
	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		slog.Error("error during server shutdown", "error", err)
		return err
	}
	slog.Info("server shut down successfully")
	return nil
}

func NewServer(state *ServerState, config ServerConfig) (*Server, error) {
	slog.Info("creating new server", "host", config.Host, "port", config.Port, "tls", config.UseTls)
	router := mux.NewRouter()

	router.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		_ = writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	router.HandleFunc("/api/session/start", func(w http.ResponseWriter, r *http.Request) {
		handleStartSession(state, w, r)
	})
	router.HandleFunc("/api/session/mrz", func(w http.ResponseWriter, r *http.Request) {
		handleSubmitMrz(state, w, r)
	})
	router.HandleFunc("/api/session/portrait", func(w http.ResponseWriter, r *http.Request) {
		handleSubmitPortrait(state, w, r)
	})
	router.HandleFunc("/api/session/liveness", func(w http.ResponseWriter, r *http.Request) {
		handleSubmitLiveness(state, w, r)
	})
	router.HandleFunc("/api/session/back", func(w http.ResponseWriter, r *http.Request) {
		handleBack(state, w, r)
	})
	router.HandleFunc("/api/session/submit", func(w http.ResponseWriter, r *http.Request) {
		handleSubmit(state, w, r)
	})

	srv := &http.Server{
		Addr:    joinHostPort(config.Host, config.Port),
		Handler: router,
	}
	return &Server{server: srv, config: config}, nil
}

// requests / responses ------------

type startSessionResponse struct {
	SessionID string `json:"session_id"`
}

type submitMrzRequest struct {
	SessionID string `json:"session_id"`
	FrameB64  string `json:"frame"`
}

type submitPortraitRequest struct {
	SessionID string `json:"session_id"`
	FrameB64  string `json:"frame"`
}

type submitLivenessRequest struct {
	SessionID string   `json:"session_id"`
	FramesB64 []string `json:"frames"`
}

type sessionErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Retry   string `json:"retry"`
}

// handlers ------------

func handleStartSession(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)
	if !requirePOST(w, r) {
		return
	}

	sessionID := uuid.NewString()
	state.controller(sessionID)
	slog.Info("session started", "session_id", sessionID)

	_ = writeJSON(w, http.StatusOK, startSessionResponse{SessionID: sessionID})
}

func handleSubmitMrz(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)
	if !requirePOST(w, r) {
		return
	}

	var req submitMrzRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithErr(w, http.StatusBadRequest, apierrors.MrzUnparseable, "decode request", err)
		return
	}

	frame, err := images.DecodeBase64(req.FrameB64)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, apierrors.MrzUnparseable, "decode frame", err)
		return
	}

	rec, err := state.extractor.Extract(frame)
	if err != nil {
		respondWithErr(w, http.StatusUnprocessableEntity, apierrors.MrzUnreadable, "extract mrz", err)
		return
	}

	ctrl := state.controller(req.SessionID)
	if err := ctrl.SubmitMrz(rec); err != nil {
		respondWithErrKind(w, http.StatusConflict, err)
		return
	}
	state.persist(req.SessionID)

	_ = writeJSON(w, http.StatusOK, ctrl.State())
}

func handleSubmitPortrait(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)
	if !requirePOST(w, r) {
		return
	}

	var req submitPortraitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithErr(w, http.StatusBadRequest, apierrors.DescriptorInvalid, "decode request", err)
		return
	}

	frame, err := images.DecodeBase64(req.FrameB64)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, apierrors.DescriptorInvalid, "decode frame", err)
		return
	}

	portrait, err := face.ExtractPortrait(state.detector, frame)
	if err != nil {
		respondWithErrKind(w, http.StatusUnprocessableEntity, err)
		return
	}

	ctrl := state.controller(req.SessionID)
	if err := ctrl.SubmitPortrait(portrait); err != nil {
		respondWithErrKind(w, http.StatusConflict, err)
		return
	}
	state.persist(req.SessionID)

	_ = writeJSON(w, http.StatusOK, ctrl.State())
}

// submittedFrameSource adapts an already-decoded batch of pose frames,
// submitted together in one HTTP request, to liveness.FrameSource so
// the request handler can drive the same Challenge state machine a
// live camera feed would.
type submittedFrameSource struct {
	frames []models.Frame
	i      int
}

func (s *submittedFrameSource) NextFrame(ctx context.Context) (models.Frame, error) {
	if s.i >= len(s.frames) {
		return models.Frame{}, fmt.Errorf("liveness: no more submitted frames")
	}
	f := s.frames[s.i]
	s.i++
	return f, nil
}

func handleSubmitLiveness(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)
	if !requirePOST(w, r) {
		return
	}

	var req submitLivenessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithErr(w, http.StatusBadRequest, apierrors.LivenessFailed, "decode request", err)
		return
	}
	if len(req.FramesB64) != len(liveness.Sequence) {
		respondWithErr(w, http.StatusBadRequest, apierrors.LivenessFailed, "expected one frame per pose", nil)
		return
	}

	ctrl := state.controller(req.SessionID)
	st := ctrl.State()
	if st.Portrait == nil {
		respondWithErr(w, http.StatusConflict, apierrors.LivenessFailed, "no portrait recorded for session", nil)
		return
	}

	frames := make([]models.Frame, len(req.FramesB64))
	for i, b64 := range req.FramesB64 {
		frame, err := images.DecodeBase64(b64)
		if err != nil {
			respondWithErr(w, http.StatusBadRequest, apierrors.LivenessFailed, "decode pose frame", err)
			return
		}
		frames[i] = frame
	}

	ch := state.challenge(req.SessionID)
	resultCh, err := ch.Start(r.Context(), &submittedFrameSource{frames: frames})
	if err != nil {
		respondWithErr(w, http.StatusConflict, apierrors.Transient, "liveness capture already in progress for this session", err)
		return
	}
	challengeResult := <-resultCh

	match, err := face.Match(st.Portrait.Descriptor, challengeResult.LiveDescriptor)
	if err != nil {
		respondWithErr(w, http.StatusUnprocessableEntity, apierrors.DescriptorInvalid, "match faces", err)
		return
	}

	if err := ctrl.SubmitLiveness(challengeResult.LivenessResult, match); err != nil {
		respondWithErrKind(w, http.StatusConflict, err)
		_ = writeJSON(w, http.StatusConflict, ctrl.State())
		return
	}
	state.persist(req.SessionID)

	_ = writeJSON(w, http.StatusOK, ctrl.State())
}

func handleBack(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)
	if !requirePOST(w, r) {
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	ctrl := state.controller(sessionID)
	if err := ctrl.Back(); err != nil {
		respondWithErrKind(w, http.StatusConflict, err)
		return
	}
	state.persist(sessionID)

	_ = writeJSON(w, http.StatusOK, ctrl.State())
}

func handleSubmit(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)
	if !requirePOST(w, r) {
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	ctrl := state.controller(sessionID)
	if err := ctrl.Submit(); err != nil {
		respondWithErrKind(w, http.StatusConflict, err)
		return
	}

	att, err := attestation.Assemble(ctrl.State(), time.Now())
	if err != nil {
		respondWithErrKind(w, http.StatusInternalServerError, err)
		return
	}
	if err := state.store.Remove(sessionID); err != nil {
		slog.Error("failed to clear submitted session state", "session_id", sessionID, "error", err)
	}

	_ = writeJSON(w, http.StatusOK, att)
}

// helpers ------------

func joinHostPort(host string, port int) string {
	if host == "" {
		host = "0.0.0.0"
	}
	return host + ":" + strconv.Itoa(port)
}

func respondWithErr(w http.ResponseWriter, code int, kind apierrors.Kind, logMsg string, e error) {
	slog.Error(logMsg, "error", e, "status_code", code, "kind", kind)
	_ = writeJSON(w, code, sessionErrorResponse{Kind: string(kind), Message: logMsg})
}

func respondWithErrKind(w http.ResponseWriter, code int, err error) {
	kind := apierrors.KindOf(err)
	slog.Error("phase transition rejected", "error", err, "status_code", code, "kind", kind)
	_ = writeJSON(w, code, sessionErrorResponse{
		Kind:    string(kind),
		Message: err.Error(),
		Retry:   string(apierrors.Retry(kind)),
	})
}

func closeRequestBody(r *http.Request) {
	if err := r.Body.Close(); err != nil {
		slog.Error("failed to close request body", "error", err)
	}
}

func requirePOST(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		respondWithErr(w, http.StatusMethodNotAllowed, errMethodNotAllowed, "invalid method", nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal json payload", "error", err)
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
	return nil
}
