package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/order-placement-service/internal/domain"
	"github.com/example/order-placement-service/internal/usecase"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// maxBodyBytes ограничивает размер тела запроса на заказ.
const maxBodyBytes = 1 << 20

type Server struct {
	Router   *mux.Router
	UCGet    usecase.GetOrderByID
	UCCreate usecase.CreateOrder
	Log      *zap.Logger
}

func NewServer(get usecase.GetOrderByID, create usecase.CreateOrder, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{Router: mux.NewRouter(), UCGet: get, UCCreate: create, Log: log}
	s.Router.HandleFunc("/api/orders", s.handleCreate).Methods(http.MethodPost)
	s.Router.HandleFunc("/api/order/{id}", s.handleGet).Methods(http.MethodGet)
	return s
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req usecase.OrderRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	o, err := s.UCCreate.Execute(r.Context(), req.CustomerID, req.Products)
	if err != nil {
		code := statusFor(err)
		msg := err.Error()
		if code == http.StatusInternalServerError {
			// детали сбоя хранилища наружу не отдаём
			msg = "internal error"
		}
		writeError(w, code, msg)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	o, err := s.UCGet.Execute(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		s.Log.Error("get order", zap.String("order_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrCustomerNotFound),
		errors.Is(err, domain.ErrNoProductsFound),
		errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
