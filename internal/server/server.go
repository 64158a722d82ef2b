package server

import (
	"net/http"

	"github.com/sw33tLie/archerlookup/internal/utils"
	"github.com/sw33tLie/archerlookup/pkg/archer"
	"github.com/sw33tLie/archerlookup/pkg/storage"
)

type Server struct {
	Integration *archer.Integration
	// DB is optional; without it the history endpoints answer 404.
	DB       *storage.DB
	Options  archer.Options
	Username string
	Password string
}

func New(integration *archer.Integration, db *storage.DB, opts archer.Options, user, pass string) *Server {
	return &Server{
		Integration: integration,
		DB:          db,
		Options:     opts,
		Username:    user,
		Password:    pass,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/lookup", s.basicAuth(s.handleLookup))
	mux.HandleFunc("POST /api/message", s.basicAuth(s.handleMessage))
	mux.HandleFunc("GET /api/validate", s.basicAuth(s.handleValidate))
	mux.HandleFunc("GET /api/history", s.basicAuth(s.handleHistory))
	mux.HandleFunc("GET /api/stats", s.basicAuth(s.handleStats))

	return mux
}

func (s *Server) Start(addr string) error {
	utils.Log.Infof("Starting server on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
