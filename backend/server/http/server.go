package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/adraglia/smashparty/backend/media"
)

const (
	defaultShutdownDeadline = 10 * time.Second

	maxUploadBytes = 10 << 20
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

type RoomCreator interface {
	CreateRoom() (string, error)
}

type MediaStore interface {
	Save(data []byte, originalName string) (string, error)
	Dir() string
}

type CreateRoomResponse struct {
	RoomID string `json:"room_id"`
}

type UploadResponse struct {
	Success      bool   `json:"success"`
	ImagePath    string `json:"image_path"`
	OriginalName string `json:"original_name"`
}

type GenericResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Server struct {
	logger zerolog.Logger
	rooms  RoomCreator
	store  MediaStore
	*http.Server
}

type Config struct {
	Logger      *zerolog.Logger
	RoomCreator RoomCreator
	MediaStore  MediaStore
	StaticDir   string
	ListenAddr  string
}

func NewServer(cfg Config) *Server {
	srv := &Server{
		logger: cfg.Logger.With().Str("component", "api-server").Logger(),
		rooms:  cfg.RoomCreator,
		store:  cfg.MediaStore,
	}

	r := http.NewServeMux()
	r.HandleFunc("POST /api/room", srv.createRoom)
	r.HandleFunc("POST /upload", srv.upload)
	r.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.MediaStore.Dir()))))
	if cfg.StaticDir != "" {
		r.Handle("GET /", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:         86400,
	})

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: c.Handler(r),
	}
	return srv
}

func (srv *Server) createRoom(w http.ResponseWriter, _ *http.Request) {
	roomID, err := srv.rooms.CreateRoom()
	if err != nil {
		srv.logger.Error().Err(err).Msg("failed to create room")
		writeJSON(w, http.StatusServiceUnavailable, &GenericResponse{Error: err.Error()})
		return
	}
	srv.logger.Debug().Str("roomID", roomID).Msg("room code created")
	writeJSON(w, http.StatusOK, &CreateRoomResponse{RoomID: roomID})
}

func (srv *Server) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, &GenericResponse{Error: "no file uploaded"})
		return
	}
	defer func() {
		_ = file.Close()
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, &GenericResponse{Error: "unreadable upload"})
		return
	}

	ref, err := srv.store.Save(data, header.Filename)
	if err != nil {
		if errors.Is(err, media.ErrUnsupportedMediaType) || errors.Is(err, media.ErrEmptyUpload) {
			writeJSON(w, http.StatusBadRequest, &GenericResponse{Error: err.Error()})
			return
		}
		srv.logger.Error().Err(err).Msg("failed to store upload")
		writeJSON(w, http.StatusInternalServerError, &GenericResponse{Error: "storage failure"})
		return
	}

	writeJSON(w, http.StatusOK, &UploadResponse{
		Success:      true,
		ImagePath:    ref,
		OriginalName: header.Filename,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(code)
	_, _ = w.Write(b)
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	hErr := make(chan error)
	go func() {
		hErr <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-hErr:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}
}
