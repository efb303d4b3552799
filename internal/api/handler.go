package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/Thspli/backFarma/domain"
	"github.com/Thspli/backFarma/internal/inventory"
	"github.com/Thspli/backFarma/internal/sales"
)

type ctxKey string

const (
	ctxUserID   ctxKey = "userID"
	ctxUserName ctxKey = "userName"
	ctxRole     ctxKey = "role"
)

const tokenLifetime = 8 * time.Hour

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db          *sqlx.DB
	secret      string
	frontendURL string
	lots        *inventory.Store
	sales       *sales.Coordinator
}

// New constructs a Handler.
func New(db *sqlx.DB, secret, frontendURL string) *Handler {
	lots := inventory.NewStore(db)
	return &Handler{
		db:          db,
		secret:      secret,
		frontendURL: frontendURL,
		lots:        lots,
		sales:       sales.NewCoordinator(db, lots),
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.frontendURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.login)

		r.Group(func(pr chi.Router) {
			pr.Use(h.authMiddleware)

			pr.Get("/auth/me", h.me)

			pr.Route("/users", func(r chi.Router) {
				r.Get("/", h.listUsers)
				r.Post("/", h.createUser)
				r.Put("/{id}", h.updateUser)
				r.Delete("/{id}", h.deleteUser)
			})

			pr.Route("/medications", func(r chi.Router) {
				r.Get("/", h.listMedications)
				r.Get("/{id}", h.getMedication)
				r.Post("/", h.createMedication)
				r.Put("/{id}", h.updateMedication)
				r.Delete("/{id}", h.deleteMedication)
				r.Post("/{id}/lots", h.addLot)
			})

			pr.Route("/doctors", func(r chi.Router) {
				r.Get("/", h.listDoctors)
				r.Post("/", h.createDoctor)
				r.Put("/{id}", h.updateDoctor)
				r.Delete("/{id}", h.deleteDoctor)
			})

			pr.Route("/health-units", func(r chi.Router) {
				r.Get("/", h.listHealthUnits)
				r.Post("/", h.createHealthUnit)
				r.Put("/{id}", h.updateHealthUnit)
				r.Delete("/{id}", h.deleteHealthUnit)
			})

			pr.Route("/prescriptions", func(r chi.Router) {
				r.Get("/", h.listPrescriptions)
				r.Post("/", h.createPrescription)
				r.Put("/{id}", h.updatePrescription)
			})

			pr.Route("/sales", func(r chi.Router) {
				r.Get("/", h.listSales)
				r.Post("/", h.createSale)
			})

			pr.Route("/reports", func(r chi.Router) {
				r.Get("/top-medications", h.topMedications)
				r.Get("/top-prescribers", h.topPrescribers)
				r.Get("/sales-by-operator", h.salesByOperator)
				r.Get("/top-health-units", h.topHealthUnits)
				r.Get("/stock", h.stockStatistics)
			})
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)})
}

// Authentication helpers

type authClaims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(userID, name, role string) (string, error) {
	claims := authClaims{
		Name: name,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok {
			respondError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.Subject)
		ctx = context.WithValue(ctx, ctxUserName, claims.Name)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	role := r.Context().Value(ctxRole)
	if role == nil {
		respondError(w, http.StatusUnauthorized, "missing role")
		return false
	}
	current := role.(string)
	for _, allowedRole := range allowed {
		if current == allowedRole {
			return true
		}
	}
	respondError(w, http.StatusForbidden, "insufficient permissions")
	return false
}

func userIDFromContext(r *http.Request) string {
	if val := r.Context().Value(ctxUserID); val != nil {
		if id, ok := val.(string); ok {
			return id
		}
	}
	return ""
}

// Auth handlers

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	var user domain.User
	err := h.db.Get(&user, `SELECT id, name, email, password_hash, role, active, created_at, updated_at FROM users WHERE email = ?`, strings.ToLower(req.Email))
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !user.Active {
		respondError(w, http.StatusForbidden, "user is inactive")
		return
	}

	token, err := h.generateToken(user.ID, user.Name, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"user": map[string]any{
		"id":   r.Context().Value(ctxUserID),
		"name": r.Context().Value(ctxUserName),
		"role": r.Context().Value(ctxRole),
	}})
}

// User handlers

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin, domain.RoleManager) {
		return
	}
	var users []domain.User
	if err := h.db.Select(&users, `SELECT id, name, email, password_hash, role, active, created_at, updated_at FROM users ORDER BY created_at DESC`); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list users")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": users})
}

type userRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Active   *bool  `json:"active"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "name, email and password are required")
		return
	}
	role := req.Role
	if role == "" {
		role = domain.RoleClerk
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}
	id := uuid.NewString()
	if _, err := h.db.Exec(`INSERT INTO users (id, name, email, password_hash, role) VALUES (?, ?, ?, ?, ?)`,
		id, req.Name, strings.ToLower(req.Email), hashed, role); err != nil {
		respondError(w, http.StatusBadRequest, "email already registered")
		return
	}
	var user domain.User
	if err := h.db.Get(&user, `SELECT id, name, email, password_hash, role, active, created_at, updated_at FROM users WHERE id = ?`, id); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load user")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	callerID := userIDFromContext(r)
	callerRole, _ := r.Context().Value(ctxRole).(string)
	if callerID != id && callerRole != domain.RoleAdmin {
		respondError(w, http.StatusForbidden, "access denied")
		return
	}

	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var fields []string
	var values []any
	if req.Name != "" {
		fields, values = append(fields, "name = ?"), append(values, req.Name)
	}
	if req.Email != "" {
		fields, values = append(fields, "email = ?"), append(values, strings.ToLower(req.Email))
	}
	if req.Role != "" && callerRole == domain.RoleAdmin {
		fields, values = append(fields, "role = ?"), append(values, req.Role)
	}
	if req.Active != nil && callerRole == domain.RoleAdmin {
		fields, values = append(fields, "active = ?"), append(values, *req.Active)
	}
	if req.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "unable to secure password")
			return
		}
		fields, values = append(fields, "password_hash = ?"), append(values, string(hashed))
	}
	if len(fields) == 0 {
		respondError(w, http.StatusBadRequest, "no fields to update")
		return
	}
	fields = append(fields, "updated_at = CURRENT_TIMESTAMP")
	values = append(values, id)

	res, err := h.db.Exec(`UPDATE users SET `+strings.Join(fields, ", ")+` WHERE id = ?`, values...)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update user")
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	var user domain.User
	if err := h.db.Get(&user, `SELECT id, name, email, password_hash, role, active, created_at, updated_at FROM users WHERE id = ?`, id); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load user")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	id := chi.URLParam(r, "id")
	if id == userIDFromContext(r) {
		respondError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}
	res, err := h.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to delete user")
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Helpers

func nullIfEmpty(val string) *string {
	trimmed := strings.TrimSpace(val)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func logAndRespond(w http.ResponseWriter, context string, err error) {
	log.Printf("%s: %v", context, err)
	respondError(w, http.StatusInternalServerError, context)
}
