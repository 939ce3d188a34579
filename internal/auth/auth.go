package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/example/condo-portal/internal/booking"
	"github.com/example/condo-portal/internal/db"
	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"
)

// User is a portal account. Role drives which lifecycle operations the web
// layer exposes; the booking service re-checks it regardless.
type User struct {
	ID       int64
	Username string
	Role     booking.Role
}

type Store struct {
	sc *securecookie.SecureCookie
	db *db.DB
}

type ctxKey string

const userKey ctxKey = "user"

const cookieName = "condoportal_session"

func NewStore(d *db.DB, hashKey, blockKey []byte) *Store {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int((14 * 24 * time.Hour).Seconds()))
	return &Store{sc: sc, db: d}
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func (s *Store) CreateUser(ctx context.Context, username, password string, role booking.Role) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.db.Exec(ctx,
		`INSERT INTO users(username, password_bcrypt, role) VALUES ($1,$2,$3)`,
		username, hash, string(role))
}

func (s *Store) Authenticate(ctx context.Context, username, password string) (User, error) {
	var u User
	var hash, role string
	err := s.db.QueryRow(ctx,
		`SELECT id, username, password_bcrypt, role FROM users WHERE username=$1`,
		username).Scan(&u.ID, &u.Username, &hash, &role)
	if err != nil {
		return User{}, db.WrapNotFound(err)
	}
	if !CheckPassword(hash, password) {
		return User{}, errors.New("invalid credentials")
	}
	u.Role, err = booking.ParseRole(role)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	var role string
	err := s.db.QueryRow(ctx,
		`SELECT id, username, role FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Username, &role)
	if err != nil {
		return User{}, db.WrapNotFound(err)
	}
	u.Role, err = booking.ParseRole(role)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Store) SetSession(w http.ResponseWriter, r *http.Request, userID int64) error {
	val := map[string]any{"uid": userID, "v": 1}
	encoded, err := s.sc.Encode(cookieName, val)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int((14 * 24 * time.Hour).Seconds()),
	})
	return nil
}

func (s *Store) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (s *Store) sessionUserID(r *http.Request) (int64, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return 0, false
	}
	val := map[string]any{}
	if err := s.sc.Decode(cookieName, c.Value, &val); err != nil {
		return 0, false
	}
	switch uid := val["uid"].(type) {
	case int64:
		if uid > 0 {
			return uid, true
		}
	case float64:
		if uid > 0 {
			return int64(uid), true
		}
	}
	return 0, false
}

// RequireAuth resolves the session to a full user row (id, username, role)
// and stores it on the request context.
func (s *Store) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := s.sessionUserID(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		u, err := s.GetUser(r.Context(), uid)
		if err != nil {
			s.ClearSession(w)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		ctx := context.WithValue(r.Context(), userKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)
	return u, ok
}
