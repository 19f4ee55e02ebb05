// Package provision implements the HTTP configuration endpoint of the relay.
//
// The endpoint serves a configuration form, accepts WiFi credentials and the
// keep/restart choices, lists the learned keys and streams every captured
// code to websocket clients.
package provision

import (
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"

	"libdb.so/irrelay"
	"libdb.so/irrelay/keystore"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

//go:embed form.html
var formHTML []byte

const doneHTML = `<!DOCTYPE html>
<html>
<head><title>irrelay</title></head>
<body>
  <h1>irrelay configuration</h1>
  <p>done</p>
</body>
</html>
`

// Settings is the request body of a configuration POST.
type Settings struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
	// Keep keeps the learned keys. When false, every key is forgotten.
	Keep bool `json:"keep"`
	// Restart asks for a restart once the response is written.
	Restart bool `json:"restart"`
}

// Options configures a Handler.
type Options struct {
	// Keys is the store the learned keys are removed from when the client
	// does not keep them.
	Keys irrelay.KeyStore
	// Credentials stores the submitted WiFi credentials.
	Credentials *keystore.CredentialsFile
	// Restart is called after a response asking for a restart was written.
	// It may be nil.
	Restart func()
	// OriginPatterns lists the hosts allowed to open the capture stream from
	// a browser. See [websocket.AcceptOptions].
	OriginPatterns []string
}

// Handler is the provisioning HTTP handler.
type Handler struct {
	session *irrelay.Session
	opts    Options
	logger  *slog.Logger
	hub     *hub
	mux     *http.ServeMux
}

var _ http.Handler = (*Handler)(nil)

// NewHandler creates a provisioning handler for session. Captures made by the
// session are pushed to stream clients from now on.
func NewHandler(session *irrelay.Session, opts Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		session: session,
		opts:    opts,
		logger:  logger,
		hub:     newHub(),
		mux:     http.NewServeMux(),
	}
	session.OnCapture(h.hub.publish)

	h.mux.HandleFunc("GET /{$}", h.serveForm)
	h.mux.HandleFunc("POST /{$}", h.serveSettings)
	h.mux.HandleFunc("GET /codes", h.serveCodes)
	h.mux.HandleFunc("GET /codes/stream", h.serveStream)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) serveForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(formHTML)
}

func (h *Handler) serveSettings(w http.ResponseWriter, r *http.Request) {
	var settings Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		h.logger.Warn(
			"cannot decode settings",
			"remote", r.RemoteAddr,
			"err", err)
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}

	if len(settings.SSID) > 1 || len(settings.Password) > 1 {
		creds := keystore.Credentials{SSID: settings.SSID, Password: settings.Password}
		if err := h.opts.Credentials.Save(creds); err != nil {
			h.logger.Error(
				"cannot save credentials",
				"err", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		h.logger.Info(
			"saved credentials",
			"ssid", settings.SSID)
	}

	if settings.Keep {
		h.logger.Info("keeping keys")
	} else if err := h.session.Forget(h.opts.Keys); err != nil {
		h.logger.Error(
			"cannot forget keys",
			"err", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusCreated)
	w.Write([]byte(doneHTML))

	if settings.Restart && h.opts.Restart != nil {
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		h.logger.Info("restarting")
		go h.opts.Restart()
	}
}

// serveCodes lists the learned keys in the same form as the key file.
func (h *Handler) serveCodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, keystore.NewRecord(h.session.Keys()))
}

func (h *Handler) serveStream(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.opts.OriginPatterns,
	})
	if err != nil {
		h.logger.Warn(
			"cannot accept capture stream",
			"remote", r.RemoteAddr,
			"err", err)
		return
	}
	defer c.Close(websocket.StatusNormalClosure, "")

	logger := h.logger.With("remote", r.RemoteAddr)
	logger.Debug("capture stream opened")
	defer logger.Debug("capture stream closed")

	captures := h.hub.subscribe()
	defer h.hub.unsubscribe(captures)

	ctx := c.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case capture := <-captures:
			if err := wsjson.Write(ctx, c, capture); err != nil {
				logger.Debug(
					"cannot write capture",
					"err", err)
				return
			}
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
