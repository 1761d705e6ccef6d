package handler

import (
	"net/http"

	"github.com/avolkov/notes-service/internal/middleware"
	"github.com/gorilla/mux"
)

// Router assembles the routing table. /notes sits behind the session gate;
// register, login and logout are public (logout must answer 200 even
// without a session). OPTIONS is routed everywhere so CORS preflights
// reach the middleware.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(h.log))
	r.Use(middleware.CORS(h.cfg.CORSAllowedOrigins))

	r.HandleFunc("/register", h.Register).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/logout", h.Logout).Methods(http.MethodPost, http.MethodOptions)

	notes := r.PathPrefix("/notes").Subrouter()
	notes.Use(middleware.SessionAuth(h.sessions, h.cfg.SessionCookieName))
	notes.HandleFunc("", h.CreateNote).Methods(http.MethodPost, http.MethodOptions)

	return r
}
